// Package postgres implements a Postgres-backed storage.Repository using pgx
// v5. The replace runs DROP + CREATE + COPY inside one transaction so a
// failed run can never leave a half-written table, and COPY keeps the bulk
// insert on the fast path.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"banketl/internal/storage"
)

// Kind is the factory name this backend registers under.
const Kind = "postgres"

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

var sqlTypes = map[string]string{
	"text":    "TEXT",
	"real":    "DOUBLE PRECISION",
	"integer": "BIGINT",
	"bool":    "BOOLEAN",
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects a pgx pool and verifies the connection.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Replace drops and recreates table with the given rows inside one
// transaction, loading the rows via COPY.
func (r *Repository) Replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	types, err := storage.ColumnTypes(columns, rows, sqlTypes)
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: err}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+storage.QuoteIdent(table)); err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("drop: %w", err)}
	}
	if _, err := tx.Exec(ctx, storage.CreateTableSQL(table, columns, types)); err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("create: %w", err)}
	}

	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("copy: %w", err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &storage.WriteError{Table: table, Err: fmt.Errorf("commit: %w", err)}
	}
	return inserted, nil
}

// Select executes a read statement and materializes the result.
func (r *Repository) Select(ctx context.Context, stmt string) ([]string, [][]any, error) {
	rs, err := r.pool.Query(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rs.Close()

	fields := rs.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out [][]any
	for rs.Next() {
		vals, err := rs.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: values: %w", err)
		}
		out = append(out, vals)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return cols, out, nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
