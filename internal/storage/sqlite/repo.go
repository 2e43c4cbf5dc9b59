// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql with the pure-Go driver. The replace is a DROP + CREATE +
// batched INSERT inside one transaction; SQLite has no bulk-load API like
// Postgres COPY, but a single transaction keeps the write all-or-nothing and
// fast enough for report-sized datasets.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"banketl/internal/storage"
)

// Kind is the factory name this backend registers under.
const Kind = "sqlite"

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

var sqlTypes = map[string]string{
	"text":    "TEXT",
	"real":    "REAL",
	"integer": "INTEGER",
	"bool":    "INTEGER", // 0/1
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite database. dsn is passed to database/sql
// directly, e.g. "Banks.db" or "file:banks.db?cache=shared".
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// The whole run is one writer followed by sequential readers; a single
	// connection avoids the separate-memory-database trap with :memory: DSNs.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &Repository{db: db}, nil
}

// Replace drops and recreates table with the given rows inside one
// transaction. Running it twice with the same dataset leaves exactly one
// copy of the rows.
func (r *Repository) Replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	types, err := storage.ColumnTypes(columns, rows, sqlTypes)
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+storage.QuoteIdent(table)); err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("drop: %w", err)}
	}
	if _, err := tx.ExecContext(ctx, storage.CreateTableSQL(table, columns, types)); err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("create: %w", err)}
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = storage.QuoteIdent(c)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		storage.QuoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	))
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("prepare insert: %w", err)}
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, &storage.WriteError{
				Table: table,
				Err:   fmt.Errorf("row width %d != column count %d", len(row), len(columns)),
			}
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("insert: %w", err)}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("commit: %w", err)}
	}
	return inserted, nil
}

// Select executes a read statement and materializes the result. []byte
// values are converted to string so callers can render them directly.
func (r *Repository) Select(ctx context.Context, stmt string) ([]string, [][]any, error) {
	rs, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: columns: %w", err)
	}

	var out [][]any
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return cols, out, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error { return r.db.Close() }
