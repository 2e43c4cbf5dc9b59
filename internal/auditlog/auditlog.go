// Package auditlog implements the append-only progress trail written at every
// pipeline stage boundary.
//
// The trail is deliberately primitive: one line per entry, in the form
//
//	<timestamp>,<message>
//
// with a stable, sortable timestamp layout. The file is only ever appended
// to; the pipeline never truncates it, so a single file accumulates the
// history of every run of a deployment. Downstream consumers (humans, report
// scripts) grep it for "ETL Job Failed" to distinguish good runs from bad.
//
// A write failure is returned to the caller rather than swallowed: a run
// whose audit trail is broken must not claim success.
package auditlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// TimestampLayout is the wall-clock format used for every entry. It sorts
// lexicographically within a year and matches the format the quarterly
// report tooling already parses.
const TimestampLayout = "2006-Jan-02 15:04:05"

// Recorder appends one timestamped entry to the audit trail.
type Recorder interface {
	Record(message string) error
}

// File is a file-backed Recorder. Each Record call opens the file in append
// mode, writes one line, and closes it again. Open-per-write keeps the
// handle lifetime short and makes the append atomic at line granularity on
// POSIX filesystems for reasonably sized lines.
type File struct {
	path string

	mu  sync.Mutex
	now func() time.Time // seam for tests
}

// NewFile returns a file-backed Recorder appending to path. The file is
// created on first write if it does not exist.
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

// Record appends "<timestamp>,<message>\n" to the log file.
func (f *File) Record(message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auditlog: open %s: %w", f.path, err)
	}

	line := f.now().Format(TimestampLayout) + "," + message + "\n"
	_, werr := fh.WriteString(line)
	cerr := fh.Close()
	if werr != nil {
		return fmt.Errorf("auditlog: append %s: %w", f.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("auditlog: close %s: %w", f.path, cerr)
	}
	return nil
}

// Memory is an in-memory Recorder capturing messages for tests. It records
// the message text only; timestamps are applied by the file implementation.
type Memory struct {
	mu       sync.Mutex
	messages []string
}

// Record captures the message.
func (m *Memory) Record(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

// Messages returns a copy of all recorded messages in order.
func (m *Memory) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}
