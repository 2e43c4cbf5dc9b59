// Package file provides a local filesystem datasource, used for the
// reference dataset and for replaying saved documents in tests.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local reads bytes from a path on the local filesystem.
type Local struct {
	path string
}

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local {
	return &Local{path: path}
}

// Open returns a reader over the file. The context is checked up front;
// local reads are not otherwise cancellable.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return f, nil
}

// Path returns the configured path.
func (l *Local) Path() string { return l.path }
