package metrics

import (
	"errors"
	"testing"
	"time"
)

// captureBackend records calls for assertions.
type captureBackend struct {
	counters  map[string]float64
	durations map[string]float64
	labels    map[string]Labels
	flushed   int
}

func newCapture() *captureBackend {
	return &captureBackend{
		counters:  map[string]float64{},
		durations: map[string]float64{},
		labels:    map[string]Labels{},
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *captureBackend) ObserveDuration(name string, value float64, labels Labels) {
	c.durations[name] = value
	c.labels[name] = labels
}

func (c *captureBackend) Flush() error {
	c.flushed++
	return nil
}

func restoreBackend(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { backend = nopBackend{} })
}

func TestRecordStage(t *testing.T) {
	restoreBackend(t)
	cap := newCapture()
	SetBackend(cap)

	RecordStage("largest_banks", "extract", nil, 250*time.Millisecond)

	if cap.counters["banketl_stage_total"] != 1 {
		t.Fatalf("stage counter = %v", cap.counters["banketl_stage_total"])
	}
	if got := cap.labels["banketl_stage_total"]["status"]; got != "success" {
		t.Fatalf("status = %q, want success", got)
	}
	if cap.durations["banketl_stage_duration_seconds"] != 0.25 {
		t.Fatalf("duration = %v, want 0.25", cap.durations["banketl_stage_duration_seconds"])
	}

	RecordStage("largest_banks", "extract", errors.New("boom"), time.Millisecond)
	if got := cap.labels["banketl_stage_total"]["status"]; got != "failure" {
		t.Fatalf("status = %q, want failure", got)
	}
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	restoreBackend(t)
	cap := newCapture()
	SetBackend(cap)

	RecordRows("j", "extracted", 0)
	RecordRows("j", "extracted", -5)
	if len(cap.counters) != 0 {
		t.Fatalf("counters recorded for non-positive delta: %v", cap.counters)
	}

	RecordRows("j", "extracted", 10)
	if cap.counters["banketl_records_total"] != 10 {
		t.Fatalf("records counter = %v", cap.counters["banketl_records_total"])
	}
}

func TestSetBackend_NilKeepsExisting(t *testing.T) {
	restoreBackend(t)
	cap := newCapture()
	SetBackend(cap)
	SetBackend(nil)

	if err := Flush(); err != nil {
		t.Fatal(err)
	}
	if cap.flushed != 1 {
		t.Fatalf("flushed = %d, want 1", cap.flushed)
	}
}

func TestNopBackend_SafeByDefault(t *testing.T) {
	restoreBackend(t)
	RecordStage("j", "s", nil, time.Second)
	RecordRows("j", "k", 1)
	if err := Flush(); err != nil {
		t.Fatal(err)
	}
}
