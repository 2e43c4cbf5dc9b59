// Package storage contains the backend-agnostic contract for the relational
// sink plus the factory/registry that concrete backends hook into.
//
// The pipeline never imports a database driver directly: it asks the factory
// for a Repository by kind ("sqlite", "postgres") and works against the
// interface. Backends register themselves from their init functions; the
// storage/all package exists purely to pull those init functions in via
// blank imports.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a storage backend.
type Config struct {
	// Kind selects the registered backend, e.g. "sqlite" or "postgres".
	Kind string

	// DSN is the backend connection string: a file path / DSN for sqlite,
	// a pgx connection string for postgres.
	DSN string

	// Table is the target table name. Each run replaces it wholesale.
	Table string
}

// Repository is the contract every relational backend implements.
//
// Replace persists one dataset as the entire content of table: any existing
// relation with that name is dropped and recreated, and the operation is
// all-or-nothing (a mid-write failure must not leave a mix of old and new
// rows). Select serves the read-only query stage against the same open
// connection. Close releases the connection; it must be safe to call on all
// exit paths.
type Repository interface {
	Replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Select(ctx context.Context, stmt string) (columns []string, rows [][]any, err error)
	Close() error
}

// WriteError reports a failed relational write, including the partial-write
// case a rolled-back transaction protects against.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write table %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Factory constructs a connected Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a backend factory under kind. Backends call this from
// init; registering the same kind twice panics because it is a wiring bug.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("storage: backend %q registered twice", kind))
	}
	factories[kind] = f
}

// New constructs a Repository for cfg.Kind using the registered factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown backend %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
