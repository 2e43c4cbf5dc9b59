// Package pipeline runs the four-stage batch job end to end:
// extract -> transform -> load (CSV + database) -> query.
//
// Design goals:
//
//   - Strictly sequential stages; a stage only runs if every stage before it
//     succeeded.
//   - Every stage boundary is recorded in the append-only audit log with the
//     exact progress messages operators grep for.
//   - Run never panics and never returns an error: any failure becomes a
//     single final audit entry "ETL Job Failed: <message>" and a populated
//     Outcome, so batch schedulers keep their existing behavior while
//     programmatic callers can still inspect what happened.
//   - Collaborators (fetcher, repository, rates loader, CSV writer) are
//     injected or seamed, so the orchestration logic is testable without a
//     network or a database.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"banketl/internal/auditlog"
	"banketl/internal/config"
	"banketl/internal/datasource/file"
	"banketl/internal/domain"
	"banketl/internal/extract"
	"banketl/internal/metrics"
	"banketl/internal/query"
	"banketl/internal/rates"
	"banketl/internal/sink"
	"banketl/internal/storage"
	"banketl/internal/transform"
)

// State names the stage a run is in, or ended in.
type State string

const (
	StateInit         State = "init"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoadingCSV   State = "loading_csv"
	StateLoadingDB    State = "loading_db"
	StateQuerying     State = "querying"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// ErrorKind classifies a run failure for callers that branch on cause
// rather than message text.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindExtraction    ErrorKind = "extraction"
	KindValueParse    ErrorKind = "value_parse"
	KindMissingRate   ErrorKind = "missing_rate"
	KindReferenceLoad ErrorKind = "reference_load"
	KindSinkWrite     ErrorKind = "sink_write"
	KindQuery         ErrorKind = "query"
	KindAudit         ErrorKind = "audit"
)

// Outcome reports how a run ended. State is StateComplete or StateFailed;
// on failure, Kind and Err describe the cause and the remaining fields hold
// whatever the run produced before failing.
type Outcome struct {
	State        State
	Kind         ErrorKind
	Err          error
	Dataset      domain.EnrichedDataset
	CSVChecksum  uint64
	RowsLoaded   int64
	QueryResults []query.Result
}

// Failed reports whether the run ended in StateFailed.
func (o Outcome) Failed() bool { return o.State == StateFailed }

// Fetcher retrieves a remote document as a byte stream.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Pipeline wires a job's collaborators together. Construct with New.
type Pipeline struct {
	job   config.Job
	fetch Fetcher
	audit auditlog.Recorder
	log   *logrus.Entry

	// Seams for tests; defaults point at the real implementations.
	newRepo   func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	loadRates func(ctx context.Context, cfg config.Rates) (rates.Table, error)
	writeCSV  func(dataset domain.EnrichedDataset, path string) (uint64, error)
}

// New returns a Pipeline for job. fetch retrieves the source document (and
// the reference dataset for the "http" rates kind); audit receives the
// progress trail; log receives operational detail.
func New(job config.Job, fetch Fetcher, audit auditlog.Recorder, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pipeline{
		job:      job,
		fetch:    fetch,
		audit:    audit,
		log:      log.WithField("job", job.Name),
		newRepo:  storage.New,
		writeCSV: sink.WriteCSV,
	}
	p.loadRates = p.defaultLoadRates
	return p
}

// Run executes the job. It never panics and never returns an error: any
// failure is recorded as a final "ETL Job Failed: <message>" audit entry and
// reflected in the returned Outcome. The one exception is the audit log
// itself: when a progress entry cannot be written, the run stops with
// KindAudit, since a pipeline whose audit trail is broken must not claim
// success.
func (p *Pipeline) Run(ctx context.Context) Outcome {
	out := Outcome{State: StateInit}

	if err := p.record(&out, "Preliminaries complete. Initiating ETL process"); err != nil {
		return out
	}

	// Extraction phase.
	out.State = StateExtracting
	recs, err := p.runExtract(ctx)
	if err != nil {
		return p.fail(out, err)
	}
	metrics.RecordRows(p.job.Name, "extracted", int64(len(recs)))
	if err := p.record(&out, "Data extraction complete. Initiating Transformation process"); err != nil {
		return out
	}

	// Transformation phase.
	out.State = StateTransforming
	dataset, err := p.runTransform(ctx, recs)
	if err != nil {
		return p.fail(out, err)
	}
	out.Dataset = dataset
	if err := p.record(&out, "Data transformation complete. Initiating Loading process"); err != nil {
		return out
	}

	// Loading phase: flat file first, then the database.
	out.State = StateLoadingCSV
	checksum, err := p.runLoadCSV(dataset)
	if err != nil {
		return p.fail(out, err)
	}
	out.CSVChecksum = checksum
	if err := p.record(&out, "Data saved to CSV file"); err != nil {
		return out
	}

	out.State = StateLoadingDB
	repo, err := p.newRepo(ctx, storage.Config{
		Kind:  p.job.Storage.Kind,
		DSN:   p.job.Storage.DSN,
		Table: p.job.Storage.Table,
	})
	if err != nil {
		return p.fail(out, err)
	}
	defer repo.Close()
	if err := p.record(&out, "SQL Connection initiated"); err != nil {
		return out
	}

	n, err := p.runLoadDB(ctx, repo, dataset)
	if err != nil {
		return p.fail(out, err)
	}
	out.RowsLoaded = n
	metrics.RecordRows(p.job.Name, "loaded", n)
	if err := p.record(&out, "Data loaded to Database as a table, Executing queries"); err != nil {
		return out
	}

	// Query phase.
	out.State = StateQuerying
	results, err := p.runQueries(ctx, repo)
	if err != nil {
		return p.fail(out, err)
	}
	out.QueryResults = results
	if err := p.record(&out, "Process Complete"); err != nil {
		return out
	}

	if err := p.record(&out, "Server Connection closed"); err != nil {
		return out
	}

	out.State = StateComplete
	p.log.Info("run complete")
	return out
}

func (p *Pipeline) runExtract(ctx context.Context) (domain.RecordSet, error) {
	start := time.Now()
	recs, err := p.extractOnce(ctx)
	metrics.RecordStage(p.job.Name, "extract", err, time.Since(start))
	if err == nil {
		p.log.WithField("records", len(recs)).Info("extraction complete")
	}
	return recs, err
}

func (p *Pipeline) extractOnce(ctx context.Context) (domain.RecordSet, error) {
	body, err := p.fetch.Fetch(ctx, p.job.Source.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch source document: %w", err)
	}
	defer body.Close()

	x := extract.Extractor{Anchor: p.job.Extract.Anchor}
	return x.Extract(body, p.job.Extract.Columns)
}

func (p *Pipeline) runTransform(ctx context.Context, recs domain.RecordSet) (domain.EnrichedDataset, error) {
	start := time.Now()
	dataset, err := p.transformOnce(ctx, recs)
	metrics.RecordStage(p.job.Name, "transform", err, time.Since(start))
	if err == nil {
		p.log.WithField("records", len(dataset)).Info("transformation complete")
	}
	return dataset, err
}

func (p *Pipeline) transformOnce(ctx context.Context, recs domain.RecordSet) (domain.EnrichedDataset, error) {
	tbl, err := p.loadRates(ctx, p.job.Rates)
	if err != nil {
		return nil, err
	}
	return transform.Enrich(recs, tbl)
}

func (p *Pipeline) runLoadCSV(dataset domain.EnrichedDataset) (uint64, error) {
	start := time.Now()
	checksum, err := p.writeCSV(dataset, p.job.Output.CSVPath)
	metrics.RecordStage(p.job.Name, "load_csv", err, time.Since(start))
	if err == nil {
		p.log.WithFields(logrus.Fields{
			"path":     p.job.Output.CSVPath,
			"checksum": fmt.Sprintf("%016x", checksum),
		}).Info("csv written")
	}
	return checksum, err
}

func (p *Pipeline) runLoadDB(ctx context.Context, repo storage.Repository, dataset domain.EnrichedDataset) (int64, error) {
	start := time.Now()
	n, err := repo.Replace(ctx, p.job.Storage.Table, domain.FinalColumns, dataset.Rows())
	metrics.RecordStage(p.job.Name, "load_db", err, time.Since(start))
	if err == nil {
		p.log.WithFields(logrus.Fields{
			"table": p.job.Storage.Table,
			"rows":  n,
		}).Info("table replaced")
	}
	return n, err
}

func (p *Pipeline) runQueries(ctx context.Context, repo storage.Repository) ([]query.Result, error) {
	start := time.Now()
	runner := query.NewRunner(repo)
	results := make([]query.Result, 0, len(p.job.Queries))

	var err error
	for _, stmt := range p.job.Queries {
		var res query.Result
		res, err = runner.Run(ctx, stmt)
		if err != nil {
			break
		}
		results = append(results, res)
	}
	metrics.RecordStage(p.job.Name, "query", err, time.Since(start))
	return results, err
}

// defaultLoadRates resolves the reference dataset per the configured kind.
func (p *Pipeline) defaultLoadRates(ctx context.Context, cfg config.Rates) (rates.Table, error) {
	switch cfg.Kind {
	case "http":
		body, err := p.fetch.Fetch(ctx, cfg.URL)
		if err != nil {
			return nil, &rates.LoadError{Source: cfg.URL, Reason: "fetch failed", Err: err}
		}
		defer body.Close()
		return rates.Load(body, cfg.URL)
	default:
		body, err := file.NewLocal(cfg.Path).Open(ctx)
		if err != nil {
			return nil, &rates.LoadError{Source: cfg.Path, Reason: "open failed", Err: err}
		}
		defer body.Close()
		return rates.Load(body, cfg.Path)
	}
}

// record appends a progress entry. On write failure the run is marked failed
// with KindAudit; no "ETL Job Failed" entry is attempted since the trail
// itself is broken.
func (p *Pipeline) record(out *Outcome, message string) error {
	if err := p.audit.Record(message); err != nil {
		p.log.WithError(err).Error("audit log write failed")
		out.State = StateFailed
		out.Kind = KindAudit
		out.Err = err
		return err
	}
	return nil
}

// fail records the single failure entry and returns the failed Outcome.
func (p *Pipeline) fail(out Outcome, err error) Outcome {
	out.Kind = classify(err)
	if out.Kind == KindNone {
		out.Kind = kindForState(out.State)
	}
	out.Err = err
	out.State = StateFailed

	p.log.WithError(err).WithField("kind", string(out.Kind)).Error("run failed")
	if recErr := p.audit.Record(fmt.Sprintf("ETL Job Failed: %s", err.Error())); recErr != nil {
		p.log.WithError(recErr).Error("audit log write failed while recording failure")
		out.Kind = KindAudit
	}
	return out
}

// classify maps a stage error to its ErrorKind.
func classify(err error) ErrorKind {
	var (
		structErr  *extract.StructureError
		parseErr   *transform.ParseError
		rateErr    *transform.MissingRateError
		loadErr    *rates.LoadError
		csvErr     *sink.WriteError
		storageErr *storage.WriteError
		queryErr   *query.QueryError
	)
	switch {
	case errors.As(err, &structErr):
		return KindExtraction
	case errors.As(err, &parseErr):
		return KindValueParse
	case errors.As(err, &rateErr):
		return KindMissingRate
	case errors.As(err, &loadErr):
		return KindReferenceLoad
	case errors.As(err, &csvErr), errors.As(err, &storageErr):
		return KindSinkWrite
	case errors.As(err, &queryErr):
		return KindQuery
	default:
		return KindNone
	}
}

// kindForState supplies a fallback classification for untyped errors, based
// on the stage that produced them.
func kindForState(s State) ErrorKind {
	switch s {
	case StateExtracting:
		return KindExtraction
	case StateTransforming:
		return KindReferenceLoad
	case StateLoadingCSV, StateLoadingDB:
		return KindSinkWrite
	case StateQuerying:
		return KindQuery
	default:
		return KindExtraction
	}
}
