// Command prefill runs one generation job: it reads a spreadsheet, builds
// pre-filled form links or letter requests, writes the export CSVs and,
// with -submit, sends the letters to the letter backend.
//
// Usage:
//
//	prefill -config job.yaml [-validate] [-submit] [-api-key KEY] [-v] [-log-json] [-metrics-backend datadog]
//
// Re-export the artifacts a stored run produced, as CSV on stdout:
//
//	prefill -config job.yaml -rerun <run id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"prefill/internal/config"
	"prefill/internal/letters"
	"prefill/internal/logging"
	"prefill/internal/metrics"
	"prefill/internal/metrics/datadog"
	"prefill/internal/pipeline"
	"prefill/internal/storage"

	// register every storage backend; the job picks one by kind.
	_ "prefill/internal/storage/all"
)

// defaultAPIKeyEnv holds the letter API key when the job names no source.
const defaultAPIKeyEnv = "PREFILL_API_KEY"

type runner interface {
	Run(ctx context.Context, job config.Job) (pipeline.Result, error)
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string) (config.Job, error)
	newLogger   func(w io.Writer, verbose bool) *zap.Logger
	newJSONLog  func(w io.Writer, verbose bool) *zap.Logger
	initMetrics func(ctx context.Context, log *zap.Logger, job config.Job, backend string) (func(), error)
	newRunner   func(log *zap.Logger, job config.Job, submit bool) (runner, error)
	openRepo    func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newLogger:   logging.New,
		newJSONLog:  logging.NewJSON,
		initMetrics: initMetrics,
		newRunner:   newRunner,
		openRepo:    storage.New,
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// runMain returns a Unix-style exit code: 0 on success, 2 for usage errors,
// 1 for config and runtime errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("prefill", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "job config path (.json, .yaml or .yml)")
	validateOnly := fs.Bool("validate", false, "validate the configuration and exit")
	submit := fs.Bool("submit", false, "submit generated letters to the letter backend (letter mode)")
	verbose := fs.Bool("v", false, "enable verbose logs")
	logJSON := fs.Bool("log-json", false, "write logs as JSON lines")
	metricsBackend := fs.String("metrics-backend", "", "metrics backend (none|datadog); overrides the job and METRICS_BACKEND")
	apiKey := fs.String("api-key", "", "letter API key; overrides letter.api_key_file and letter.api_key_env")
	rerunID := fs.String("rerun", "", "print the artifacts stored under this run id as CSV and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: prefill -config path/to/job.yaml [-validate] [-submit] [-v]")
		return 2
	}

	job, err := deps.loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if k := strings.TrimSpace(*apiKey); k != "" {
		job.Letter.APIKey = k
	}

	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", *cfgPath)
		return 1
	}
	if *validateOnly {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", *cfgPath)
		return 0
	}

	newLogger := deps.newLogger
	if *logJSON && deps.newJSONLog != nil {
		newLogger = deps.newJSONLog
	}
	log := newLogger(stderr, *verbose)
	defer func() { _ = log.Sync() }()

	if *rerunID != "" {
		if err := rerun(ctx, log, deps.openRepo, job, *rerunID, stdout); err != nil {
			fmt.Fprintf(stderr, "rerun: %v\n", err)
			return 1
		}
		return 0
	}

	backend := *metricsBackend
	if backend == "" {
		backend = job.Metrics.Backend
	}
	if backend == "" {
		backend = os.Getenv("METRICS_BACKEND")
	}
	cleanup, err := deps.initMetrics(ctx, log, job, backend)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	r, err := deps.newRunner(log, job, *submit)
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}

	start := time.Now()
	res, err := r.Run(ctx, job)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		for _, e := range res.SubmitErrors {
			fmt.Fprintf(stderr, "  %s\n", e)
		}
		return 1
	}
	log.Debug("completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))

	if job.Output.ResultsCSV == "" {
		for _, u := range res.Artifacts() {
			fmt.Fprintln(stdout, u)
		}
	}
	summary := fmt.Sprintf("ok run=%s combinations=%d", res.RunID, len(res.Combinations))
	if res.BatchID != "" {
		summary += " batch=" + res.BatchID
	}
	fmt.Fprintln(stdout, summary)

	if res.RecipientErr != nil {
		fmt.Fprintf(stderr, "recipients not attached: %v\n", res.RecipientErr)
		return 1
	}
	return 0
}

// newRunner builds the pipeline runner. With submit it also wires the HTTP
// letter client.
func newRunner(log *zap.Logger, job config.Job, submit bool) (runner, error) {
	r := pipeline.NewDefaultRunner(log)
	if !submit {
		return r, nil
	}
	if job.Mode != config.ModeLetter {
		return nil, errors.New("-submit requires mode letter")
	}
	if strings.TrimSpace(job.Letter.APIBaseURL) == "" {
		return nil, errors.New("-submit requires letter.api_base_url")
	}

	var timeout time.Duration
	if s := job.Letter.Timeout; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("letter.timeout: %w", err)
		}
		timeout = d
	}
	r.Submitter = letters.NewClient(job.Letter.APIBaseURL, credentials(job.Letter), http.DefaultClient, timeout)
	return r, nil
}

func credentials(lc config.LetterConfig) letters.CredentialProvider {
	if lc.APIKey != "" {
		return letters.StaticCredentials(lc.APIKey)
	}
	if lc.APIKeyFile != "" {
		return letters.FileCredentials{Path: lc.APIKeyFile}
	}
	if lc.APIKeyEnv != "" {
		return letters.EnvCredentials{Var: lc.APIKeyEnv}
	}
	return letters.EnvCredentials{Var: defaultAPIKeyEnv}
}

// metricsBackend is what initMetrics installs: a metrics sink that must be
// closed to deliver its last batch.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for initMetrics tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = metrics.SetBackend
)

// initMetrics installs the named backend. The returned cleanup is never nil
// and must be called once; for datadog it stops the flush loop and submits
// the final batch.
func initMetrics(ctx context.Context, log *zap.Logger, job config.Job, backend string) (func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "none", "noop":
		log.Debug("metrics disabled")
		return noop, nil

	case "datadog", "dd":
		jobName := job.Job
		if jobName == "" {
			jobName = "prefill"
		}
		flushEvery := 60 * time.Second
		if s := job.Metrics.FlushEvery; s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return noop, fmt.Errorf("metrics.flush_every: %w", err)
			}
			flushEvery = d
		}
		tags := append(append([]string(nil), job.Metrics.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)

		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: flushEvery,
		})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		log.Info("metrics enabled", zap.String("backend", "datadog"), zap.String("job", jobName), zap.Strings("tags", tags))

		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics: datadog close error", zap.Error(err))
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog)", backend)
	}
}
