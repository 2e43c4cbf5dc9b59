// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch job has nothing for Prometheus to scrape once it exits, so metrics
// are pushed to a Pushgateway at the end of each run instead of being served
// from an HTTP endpoint. All Prometheus-specific dependencies live here so
// the rest of the project stays decoupled from the metrics system.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"banketl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // banketl_stage_total
	stageDuration *prometheus.SummaryVec // banketl_stage_duration_seconds
	recordCounter *prometheus.CounterVec // banketl_records_total
}

// NewBackend constructs a Pushgateway backend. jobName becomes the
// Pushgateway "job" grouping key; gatewayURL is the base URL of the gateway.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "banketl"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banketl_stage_total",
			Help: "Pipeline stage executions, partitioned by job, stage, and status.",
		},
		[]string{"job", "stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "banketl_stage_duration_seconds",
			Help: "Pipeline stage duration in seconds.",
		},
		[]string{"job", "stage", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banketl_records_total",
			Help: "Records flowing through the pipeline, partitioned by job and kind.",
		},
		[]string{"job", "kind"},
	)

	reg.MustRegister(stageCounter, stageDuration, recordCounter)

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		recordCounter: recordCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "banketl_stage_total":
		b.stageCounter.With(prometheus.Labels{
			"job":    labels["job"],
			"stage":  labels["stage"],
			"status": labels["status"],
		}).Add(delta)
	case "banketl_records_total":
		b.recordCounter.With(prometheus.Labels{
			"job":  labels["job"],
			"kind": labels["kind"],
		}).Add(delta)
	}
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, value float64, labels metrics.Labels) {
	if name != "banketl_stage_duration_seconds" {
		return
	}
	b.stageDuration.With(prometheus.Labels{
		"job":    labels["job"],
		"stage":  labels["stage"],
		"status": labels["status"],
	}).Observe(value)
}

// Flush pushes the collected metrics to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
