package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"banketl/internal/auditlog"
	"banketl/internal/config"
	"banketl/internal/datasource/httpds"
	"banketl/internal/metrics"
	"banketl/internal/metrics/prompush"
	"banketl/internal/pipeline"

	// register all backends with the storage factory.
	// config specifies which to use but we build in support for all of them.
	_ "banketl/internal/storage/all"
)

// main is the entry point for the batch report binary. It loads the job
// config, optionally initializes a metrics backend, runs the pipeline, and
// prints the query results.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		strict            bool
	)

	flag.StringVar(&cfgPath, "config", "", "job config JSON path (empty: built-in defaults)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&strict, "strict", false, "exit non-zero when the run fails (default mirrors the audit-log-only contract)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	job := config.Default()
	if cfgPath != "" {
		var err error
		job, err = config.LoadJob(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
	}

	if lvl, err := logrus.ParseLevel(job.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	issues := config.ValidateJob(job)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Errorf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Infof("configuration is valid")
		os.Exit(0)
	}

	setupMetrics(log, metricsBackendFlg, pushGatewayURLFlg, job.Name)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warnf("metrics: flush error: %v", err)
		}
	}()

	fetcher := httpds.NewClient(httpds.Config{
		Timeout:   60 * time.Second,
		UserAgent: "banketl/1.0",
	})

	ctx := context.Background()
	start := time.Now()

	p := pipeline.New(job, fetcher, auditlog.NewFile(job.AuditLog), log)
	out := p.Run(ctx)

	for _, res := range out.QueryResults {
		fmt.Println(res.Render())
		fmt.Println("\n" + strings.Repeat("=", 50) + "\n")
	}

	log.Debugf("completed in %s", time.Since(start).Truncate(time.Millisecond))

	if out.Failed() {
		log.WithField("kind", string(out.Kind)).Errorf("run failed: %v", out.Err)
		if strict {
			os.Exit(1)
		}
	}
}

// setupMetrics decides the metrics backend: flag, then env, then disabled.
func setupMetrics(log *logrus.Logger, backendName, gwURL, jobName string) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Warnf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Infof("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
		metrics.SetBackend(b)

	case "", "none":
		log.Debugf("metrics: disabled (backend=%q)", backendName)

	default:
		log.Warnf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
