// Package query executes the read-only statements run against the persisted
// table at the end of a pipeline run and renders their results for the
// report output.
//
// Queries are pipeline-authored (they come from the job config, not from
// users), so there is no parameterization layer; the runner's only job is to
// execute, materialize, and render.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Selecter is the slice of the storage contract the runner needs.
type Selecter interface {
	Select(ctx context.Context, stmt string) (columns []string, rows [][]any, err error)
}

// QueryError reports a statement the backend rejected (malformed SQL,
// unknown table or column).
type QueryError struct {
	Stmt string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Stmt, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Result is one executed statement with its materialized rows.
type Result struct {
	Stmt    string
	Columns []string
	Rows    [][]any
}

// Render returns the statement followed by an aligned textual table, the
// form printed to the run report.
func (r Result) Render() string {
	var b strings.Builder
	b.WriteString(r.Stmt)
	b.WriteByte('\n')

	tw := tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.Columns, "\t"))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = renderValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	return b.String()
}

// renderValue formats a cell. Floats use the shortest round-tripping form so
// rendered output matches the CSV sink.
func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Runner executes read statements against one open repository.
type Runner struct {
	repo Selecter
}

// NewRunner returns a Runner bound to repo.
func NewRunner(repo Selecter) *Runner {
	return &Runner{repo: repo}
}

// Run executes stmt and returns the materialized result. Failures wrap the
// backend error in a *QueryError; there are no retries.
func (r *Runner) Run(ctx context.Context, stmt string) (Result, error) {
	cols, rows, err := r.repo.Select(ctx, stmt)
	if err != nil {
		return Result{}, &QueryError{Stmt: stmt, Err: err}
	}
	return Result{Stmt: stmt, Columns: cols, Rows: rows}, nil
}
