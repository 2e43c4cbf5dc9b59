// Package rates loads the exchange-rate reference table used by the
// transform stage.
//
// The source is a small delimited resource whose header row contains at
// least "Currency" and "Rate" (extra columns are ignored). The table is
// reloaded on every run rather than cached: quarter-over-quarter rate drift
// is exactly what the pipeline exists to pick up.
package rates

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table maps a currency code (e.g. "GBP") to its USD multiplier. It is
// built once per run and treated as read-only afterwards.
type Table map[string]float64

// Rate returns the multiplier for code, reporting presence explicitly so
// callers can fail with a precise error instead of multiplying by zero.
func (t Table) Rate(code string) (float64, bool) {
	r, ok := t[code]
	return r, ok
}

// LoadError reports an unreadable or malformed reference dataset.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reference rates %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("reference rates %s: %s", e.Source, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// utf8BOM is stripped from the first header cell if present. Spreadsheet
// exports routinely prepend it.
const utf8BOM = "\uFEFF"

// Load reads a delimited reference dataset from r and returns the rate
// table. source labels the input in error messages.
//
// Requirements on the input:
//   - a header row containing "Currency" and "Rate" (any column order,
//     extra columns ignored)
//   - one data row per currency, rate as decimal text, strictly positive
//
// Any violation yields a *LoadError.
func Load(r io.Reader, source string) (Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, &LoadError{Source: source, Reason: "read header", Err: err}
	}

	curIdx, rateIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)) {
		case "Currency":
			curIdx = i
		case "Rate":
			rateIdx = i
		}
	}
	if curIdx < 0 || rateIdx < 0 {
		return nil, &LoadError{
			Source: source,
			Reason: fmt.Sprintf("header must contain Currency and Rate, got %v", header),
		}
	}

	tbl := Table{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("read line %d", line), Err: err}
		}
		if curIdx >= len(rec) || rateIdx >= len(rec) {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("line %d: too few fields", line)}
		}

		code := strings.TrimSpace(rec[curIdx])
		if code == "" {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("line %d: empty currency code", line)}
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(rec[rateIdx]), 64)
		if err != nil {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("line %d: rate for %s is not numeric", line, code), Err: err}
		}
		if rate <= 0 {
			return nil, &LoadError{Source: source, Reason: fmt.Sprintf("line %d: rate for %s must be positive, got %v", line, code, rate)}
		}
		tbl[code] = rate
	}

	if len(tbl) == 0 {
		return nil, &LoadError{Source: source, Reason: "no currency rows"}
	}
	return tbl, nil
}

// LoadFile loads the reference dataset from a local file.
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "open", Err: err}
	}
	defer f.Close()
	return Load(f, path)
}
