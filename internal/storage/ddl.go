package storage

import (
	"fmt"
	"strings"
)

// QuoteIdent double-quotes a SQL identifier, escaping embedded quotes. Both
// built-in backends accept this quoting style.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// ColumnTypes infers a SQL type per column from the first row's Go values.
// Backends map the generic names onto their own types via the typeMap
// argument; unknown Go types fall back to the text type.
//
// Generic names: "text", "real", "integer", "bool".
func ColumnTypes(columns []string, rows [][]any, typeMap map[string]string) ([]string, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("storage: no columns")
	}

	generic := make([]string, len(columns))
	for i := range generic {
		generic[i] = "text"
	}
	if len(rows) > 0 {
		if len(rows[0]) != len(columns) {
			return nil, fmt.Errorf("storage: row width %d != column count %d", len(rows[0]), len(columns))
		}
		for i, v := range rows[0] {
			switch v.(type) {
			case float32, float64:
				generic[i] = "real"
			case int, int32, int64:
				generic[i] = "integer"
			case bool:
				generic[i] = "bool"
			}
		}
	}

	out := make([]string, len(generic))
	for i, g := range generic {
		t, ok := typeMap[g]
		if !ok {
			t = typeMap["text"]
		}
		out[i] = t
	}
	return out, nil
}

// CreateTableSQL renders a plain CREATE TABLE statement for the given
// columns and per-column SQL types.
func CreateTableSQL(table string, columns, types []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = QuoteIdent(c) + " " + types[i]
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
}
