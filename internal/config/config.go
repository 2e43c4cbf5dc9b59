// Package config defines the canonical, JSON-serializable configuration
// model for a pipeline run. It is intentionally small and explicit so that
// jobs can be loaded from disk and passed through the program without
// additional glue code.
//
// Field names in Go mirror the JSON structure used in job files; decoding is
// performed by the standard library. Defaults reproduce the quarterly
// largest-banks report, so an empty config file is itself a runnable job.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"banketl/internal/domain"
	"banketl/internal/extract"
)

// Job describes one full pipeline run.
type Job struct {
	// Name identifies the job in logs and metrics labels.
	Name string `json:"name"`

	// Source describes the document to extract from.
	Source Source `json:"source"`

	// Rates describes where the exchange-rate reference dataset lives.
	Rates Rates `json:"rates"`

	// Extract configures the extraction stage.
	Extract Extract `json:"extract"`

	// Output configures the flat-file sink.
	Output Output `json:"output"`

	// Storage configures the relational sink.
	Storage Storage `json:"storage"`

	// Queries are the read statements run against the persisted table after
	// loading, in order. They are pipeline-authored; user input never
	// reaches this list.
	Queries []string `json:"queries"`

	// AuditLog is the path of the append-only progress trail.
	AuditLog string `json:"audit_log"`

	// LogLevel sets the operational logger verbosity (logrus level names).
	LogLevel string `json:"log_level"`
}

// Source identifies the document to fetch.
type Source struct {
	// URL of the markup document.
	URL string `json:"url"`
}

// Rates identifies the reference dataset. Kind selects the access path.
type Rates struct {
	// Kind is "file" or "http".
	Kind string `json:"kind"`

	// Path is the local path for the "file" kind.
	Path string `json:"path"`

	// URL is the resource location for the "http" kind.
	URL string `json:"url"`
}

// Extract configures the extraction stage.
type Extract struct {
	// Anchor is the heading id preceding the target table.
	Anchor string `json:"anchor"`

	// Columns is the extraction column contract.
	Columns []string `json:"columns"`
}

// Output configures the flat-file sink.
type Output struct {
	// CSVPath is the flat-file destination; replaced on every run.
	CSVPath string `json:"csv_path"`
}

// Storage configures the relational sink.
type Storage struct {
	// Kind selects the storage backend ("sqlite", "postgres").
	Kind string `json:"kind"`

	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Table is the target table; replaced wholesale each run.
	Table string `json:"table"`
}

// Default returns the job the quarterly report has always run.
func Default() Job {
	const table = "Largest_banks"
	return Job{
		Name: "largest_banks",
		Source: Source{
			URL: "https://web.archive.org/web/20230908091635/https://en.wikipedia.org/wiki/List_of_largest_banks",
		},
		Rates: Rates{
			Kind: "file",
			Path: "exchange_rate.csv",
		},
		Extract: Extract{
			Anchor:  extract.DefaultAnchor,
			Columns: domain.ExtractColumns,
		},
		Output: Output{
			CSVPath: "Largest_banks_data.csv",
		},
		Storage: Storage{
			Kind:  "sqlite",
			DSN:   "Banks.db",
			Table: table,
		},
		Queries: []string{
			fmt.Sprintf("SELECT * FROM %q", table),
			fmt.Sprintf("SELECT AVG(MC_GBP_Billion) FROM %q", table),
			fmt.Sprintf("SELECT Name FROM %q LIMIT 5", table),
		},
		AuditLog: "code_log.txt",
		LogLevel: "info",
	}
}

// LoadJob reads a job file and overlays it on the defaults: absent fields
// keep their default values.
func LoadJob(path string) (Job, error) {
	job := Default()

	f, err := os.Open(path)
	if err != nil {
		return Job{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&job); err != nil {
		return Job{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return job, nil
}
