// This file adds a lightweight linter/validator for Job values. It performs
// static checks over a decoded Job and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "storage.table"); Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateJob performs static validation of a Job. It does not mutate the
// job; callers decide whether warnings block execution.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "name",
			Message:  "name must not be empty; it labels logs and metrics",
		})
	}
	if strings.TrimSpace(j.Source.URL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.url",
			Message:  "source.url must not be empty",
		})
	}

	issues = append(issues, validateRates(j.Rates)...)
	issues = append(issues, validateStorage(j.Storage)...)

	if strings.TrimSpace(j.Extract.Anchor) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "extract.anchor",
			Message:  "extract.anchor must not be empty",
		})
	}
	if strings.TrimSpace(j.Output.CSVPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.csv_path",
			Message:  "output.csv_path must not be empty",
		})
	}
	if strings.TrimSpace(j.AuditLog) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "audit_log",
			Message:  "audit_log must not be empty",
		})
	}
	if len(j.Queries) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "queries",
			Message:  "no queries configured; the run will load data but report nothing",
		})
	}
	for i, q := range j.Queries {
		if strings.TrimSpace(q) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("queries[%d]", i),
				Message:  "query must not be empty",
			})
		}
	}

	return issues
}

func validateRates(r Rates) []Issue {
	var issues []Issue

	switch r.Kind {
	case "file":
		if strings.TrimSpace(r.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "rates.path",
				Message:  "file rates source requires a non-empty path",
			})
		}
	case "http":
		if strings.TrimSpace(r.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "rates.url",
				Message:  "http rates source requires a non-empty url",
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "rates.kind",
			Message:  "rates.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "rates.kind",
			Message:  fmt.Sprintf("unknown rates kind %q (known: file, http)", r.Kind),
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	} else {
		// Unknown kinds are warnings: the registry is the runtime source of
		// truth and other backends may be linked in.
		known := map[string]struct{}{"sqlite": {}, "postgres": {}}
		if _, ok := known[s.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.kind",
				Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
			})
		}
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.table",
			Message:  "storage.table must not be empty",
		})
	}

	return issues
}
