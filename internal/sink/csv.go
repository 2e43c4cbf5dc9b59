// Package sink writes the enriched dataset to its flat-file form.
//
// The write is a full replace with crash safety: bytes are rendered in
// memory, written to a temp file in the destination directory, and renamed
// over the target. A failure mid-write leaves the previous file untouched.
// The xxh3 checksum of the written bytes is returned so the run can record
// what it produced.
package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeebo/xxh3"

	"banketl/internal/domain"
)

// WriteError reports a failed flat-file write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write csv %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// WriteCSV serializes the dataset to path with a header row matching
// domain.FinalColumns, replacing any existing file. It returns the xxh3
// checksum of the file contents.
//
// Numeric rendering uses the shortest representation that round-trips
// (strconv 'f' with precision -1), so the 2-decimal rounding applied during
// transform is preserved exactly and the file re-reads to equal values.
func WriteCSV(dataset domain.EnrichedDataset, path string) (uint64, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(domain.FinalColumns); err != nil {
		return 0, &WriteError{Path: path, Err: err}
	}
	for _, rec := range dataset {
		row := []string{
			rec.Name,
			formatFloat(rec.USD),
			formatFloat(rec.GBP),
			formatFloat(rec.EUR),
			formatFloat(rec.INR),
		}
		if err := w.Write(row); err != nil {
			return 0, &WriteError{Path: path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, &WriteError{Path: path, Err: err}
	}

	if err := replaceFile(path, buf.Bytes()); err != nil {
		return 0, &WriteError{Path: path, Err: err}
	}
	return xxh3.Hash(buf.Bytes()), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// replaceFile writes data to a temp file next to path and renames it into
// place. The temp file lives in the same directory so the rename stays on
// one filesystem and is atomic.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	serr := tmp.Sync()
	cerr := tmp.Close()
	if werr != nil || serr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return werr
		}
		if serr != nil {
			return serr
		}
		return cerr
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
