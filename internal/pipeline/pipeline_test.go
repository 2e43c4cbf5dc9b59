package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"banketl/internal/auditlog"
	"banketl/internal/config"
	"banketl/internal/rates"
	"banketl/internal/storage"
)

// sampleDoc is a minimal source page with the anchored heading, a header
// row, and two data rows.
const sampleDoc = `<!DOCTYPE html>
<html><body>
<h2><span id="By_market_capitalization">By market capitalization</span></h2>
<table>
<tr><th>Rank</th><th>Bank name</th><th>Market cap</th></tr>
<tr><td>1</td><td>JPMorgan Chase</td><td>432.92</td></tr>
<tr><td>2</td><td>Bank of America</td><td>231.52</td></tr>
</table>
</body></html>`

// fakeFetcher serves canned bodies per URL.
type fakeFetcher struct {
	bodies map[string]string
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("no body for %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// fakeRepo records what was loaded and answers queries from it.
type fakeRepo struct {
	table      string
	columns    []string
	rows       [][]any
	closed     bool
	replaceErr error
	selectErr  error
}

func (r *fakeRepo) Replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if r.replaceErr != nil {
		return 0, r.replaceErr
	}
	r.table, r.columns, r.rows = table, columns, rows
	return int64(len(rows)), nil
}

func (r *fakeRepo) Select(ctx context.Context, stmt string) ([]string, [][]any, error) {
	if r.selectErr != nil {
		return nil, nil, r.selectErr
	}
	return r.columns, r.rows, nil
}

func (r *fakeRepo) Close() error {
	r.closed = true
	return nil
}

// failingRecorder simulates a broken audit trail.
type failingRecorder struct{ err error }

func (f failingRecorder) Record(string) error { return f.err }

func testJob(t *testing.T) config.Job {
	t.Helper()
	job := config.Default()
	job.Source.URL = "http://example/banks"
	job.Output.CSVPath = filepath.Join(t.TempDir(), "out.csv")
	job.Queries = []string{"SELECT * FROM Largest_banks"}
	return job
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestPipeline(t *testing.T, job config.Job, audit auditlog.Recorder) (*Pipeline, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{}
	fetch := &fakeFetcher{bodies: map[string]string{job.Source.URL: sampleDoc}}

	p := New(job, fetch, audit, quietLogger())
	p.newRepo = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return repo, nil
	}
	p.loadRates = func(ctx context.Context, cfg config.Rates) (rates.Table, error) {
		return rates.Table{"GBP": 0.8, "EUR": 0.93, "INR": 82.95}, nil
	}
	return p, repo
}

func TestRun_Success(t *testing.T) {
	audit := &auditlog.Memory{}
	job := testJob(t)
	p, repo := newTestPipeline(t, job, audit)

	out := p.Run(context.Background())

	if out.State != StateComplete || out.Failed() {
		t.Fatalf("State = %v, Err = %v", out.State, out.Err)
	}
	if out.RowsLoaded != 2 {
		t.Errorf("RowsLoaded = %d", out.RowsLoaded)
	}
	if len(out.QueryResults) != 1 {
		t.Fatalf("QueryResults = %d", len(out.QueryResults))
	}
	if !repo.closed {
		t.Error("repository not closed")
	}
	if repo.table != "Largest_banks" {
		t.Errorf("table = %q", repo.table)
	}

	want := []string{
		"Preliminaries complete. Initiating ETL process",
		"Data extraction complete. Initiating Transformation process",
		"Data transformation complete. Initiating Loading process",
		"Data saved to CSV file",
		"SQL Connection initiated",
		"Data loaded to Database as a table, Executing queries",
		"Process Complete",
		"Server Connection closed",
	}
	if got := audit.Messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("audit trail mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestRun_EnrichesDataset(t *testing.T) {
	audit := &auditlog.Memory{}
	p, _ := newTestPipeline(t, testJob(t), audit)

	out := p.Run(context.Background())
	if out.Failed() {
		t.Fatalf("run failed: %v", out.Err)
	}
	if len(out.Dataset) != 2 {
		t.Fatalf("Dataset = %d records", len(out.Dataset))
	}
	first := out.Dataset[0]
	if first.Name != "JPMorgan Chase" || first.USD != 432.92 {
		t.Errorf("first record = %+v", first)
	}
	// 432.92 * 0.8 = 346.336, rounded to 2 decimals.
	if first.GBP != 346.34 {
		t.Errorf("GBP = %v", first.GBP)
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	audit := &auditlog.Memory{}
	job := testJob(t)
	job.Extract.Anchor = "No_such_section"
	p, repo := newTestPipeline(t, job, audit)

	out := p.Run(context.Background())

	if out.State != StateFailed || out.Kind != KindExtraction {
		t.Fatalf("State = %v, Kind = %v, Err = %v", out.State, out.Kind, out.Err)
	}
	msgs := audit.Messages()
	if len(msgs) != 2 {
		t.Fatalf("audit trail = %q, want start entry + failure entry", msgs)
	}
	want := "ETL Job Failed: " + out.Err.Error()
	if msgs[len(msgs)-1] != want {
		t.Errorf("final entry = %q, want %q", msgs[len(msgs)-1], want)
	}
	if repo.table != "" {
		t.Error("load ran despite extraction failure")
	}
}

func TestRun_MissingRateFailure(t *testing.T) {
	audit := &auditlog.Memory{}
	job := testJob(t)
	p, _ := newTestPipeline(t, job, audit)
	p.loadRates = func(ctx context.Context, cfg config.Rates) (rates.Table, error) {
		return rates.Table{"GBP": 0.8}, nil
	}

	out := p.Run(context.Background())
	if out.Kind != KindMissingRate {
		t.Fatalf("Kind = %v, Err = %v", out.Kind, out.Err)
	}
	if out.Dataset != nil {
		t.Error("partial dataset leaked from failed transformation")
	}
	msgs := audit.Messages()
	if !strings.HasPrefix(msgs[len(msgs)-1], "ETL Job Failed: ") {
		t.Errorf("final entry = %q", msgs[len(msgs)-1])
	}
}

func TestRun_ReplaceFailure(t *testing.T) {
	audit := &auditlog.Memory{}
	p, repo := newTestPipeline(t, testJob(t), audit)
	repo.replaceErr = &storage.WriteError{Table: "Largest_banks", Err: errors.New("disk full")}

	out := p.Run(context.Background())
	if out.Kind != KindSinkWrite {
		t.Fatalf("Kind = %v, Err = %v", out.Kind, out.Err)
	}
	if !repo.closed {
		t.Error("repository not closed after failure")
	}
}

func TestRun_QueryFailure(t *testing.T) {
	audit := &auditlog.Memory{}
	p, repo := newTestPipeline(t, testJob(t), audit)
	repo.selectErr = errors.New("no such column")

	out := p.Run(context.Background())
	if out.Kind != KindQuery {
		t.Fatalf("Kind = %v, Err = %v", out.Kind, out.Err)
	}
	// Earlier stages completed: the CSV entry and DB entry are present,
	// followed only by the failure entry.
	msgs := audit.Messages()
	want := "ETL Job Failed: " + out.Err.Error()
	if msgs[len(msgs)-1] != want {
		t.Errorf("final entry = %q, want %q", msgs[len(msgs)-1], want)
	}
	if len(msgs) != 7 {
		t.Errorf("audit trail = %q", msgs)
	}
}

func TestRun_AuditWriteFailureStopsRun(t *testing.T) {
	job := testJob(t)
	p, repo := newTestPipeline(t, job, failingRecorder{err: errors.New("read-only filesystem")})

	out := p.Run(context.Background())
	if out.State != StateFailed || out.Kind != KindAudit {
		t.Fatalf("State = %v, Kind = %v", out.State, out.Kind)
	}
	if repo.table != "" {
		t.Error("stages ran despite broken audit trail")
	}
}

func TestRun_RatesFromHTTP(t *testing.T) {
	audit := &auditlog.Memory{}
	job := testJob(t)
	job.Rates = config.Rates{Kind: "http", URL: "http://example/rates.csv"}

	repo := &fakeRepo{}
	fetch := &fakeFetcher{bodies: map[string]string{
		job.Source.URL: sampleDoc,
		job.Rates.URL:  "Currency,Rate\nGBP,0.8\nEUR,0.93\nINR,82.95\n",
	}}
	p := New(job, fetch, audit, quietLogger())
	p.newRepo = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return repo, nil
	}

	out := p.Run(context.Background())
	if out.Failed() {
		t.Fatalf("run failed: %v", out.Err)
	}
	if out.RowsLoaded != 2 {
		t.Errorf("RowsLoaded = %d", out.RowsLoaded)
	}
}

func TestRun_RatesFromFile(t *testing.T) {
	audit := &auditlog.Memory{}
	job := testJob(t)
	ratesPath := filepath.Join(t.TempDir(), "exchange_rate.csv")
	if err := os.WriteFile(ratesPath, []byte("Currency,Rate\nGBP,0.8\nEUR,0.93\nINR,82.95\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	job.Rates = config.Rates{Kind: "file", Path: ratesPath}

	repo := &fakeRepo{}
	fetch := &fakeFetcher{bodies: map[string]string{job.Source.URL: sampleDoc}}
	p := New(job, fetch, audit, quietLogger())
	p.newRepo = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return repo, nil
	}

	out := p.Run(context.Background())
	if out.Failed() {
		t.Fatalf("run failed: %v", out.Err)
	}
}

func TestRun_MissingRatesFileIsReferenceLoadFailure(t *testing.T) {
	audit := &auditlog.Memory{}
	job := testJob(t)
	job.Rates = config.Rates{Kind: "file", Path: filepath.Join(t.TempDir(), "absent.csv")}

	repo := &fakeRepo{}
	fetch := &fakeFetcher{bodies: map[string]string{job.Source.URL: sampleDoc}}
	p := New(job, fetch, audit, quietLogger())
	p.newRepo = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return repo, nil
	}

	out := p.Run(context.Background())
	if out.Kind != KindReferenceLoad {
		t.Fatalf("Kind = %v, Err = %v", out.Kind, out.Err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&rates.LoadError{Source: "x", Reason: "no rows"}, KindReferenceLoad},
		{&storage.WriteError{Table: "t", Err: errors.New("x")}, KindSinkWrite},
		{errors.New("untyped"), KindNone},
	}
	for _, tc := range tests {
		if got := classify(tc.err); got != tc.want {
			t.Errorf("classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
