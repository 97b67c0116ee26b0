// Package pipeline runs one generation job end to end: read the spreadsheet,
// map its columns, build combinations, serialize them into links or letter
// requests, then export, store and submit.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prefill/internal/combination"
	"prefill/internal/config"
	"prefill/internal/letters"
	"prefill/internal/matcher"
	"prefill/internal/metrics"
	"prefill/internal/output"
	csvparse "prefill/internal/parser/csv"
	"prefill/internal/schema"
	"prefill/internal/storage"
	"prefill/internal/validate"
	"prefill/internal/values"
)

// Output shapes.
const (
	ModeLink   = config.ModeLink
	ModeLetter = config.ModeLetter
)

// Runner executes jobs. The function fields are seams; NewDefaultRunner fills
// them with the real implementations.
type Runner struct {
	Logger *zap.Logger

	Open   func(path string) (io.ReadCloser, error)
	Create func(path string) (io.WriteCloser, error)

	// NewRepository opens the run store when the job configures one.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	// Submitter, when set, receives the bulk request in letter mode.
	Submitter letters.Submitter

	Now   func() time.Time
	NewID func() string
}

func NewDefaultRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Logger: logger,
		Open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
		Create: func(path string) (io.WriteCloser, error) {
			return os.Create(path)
		},
		NewRepository: storage.New,
		Now:           time.Now,
		NewID:         func() string { return uuid.NewString() },
	}
}

// Result is everything a run produced. Fields past the failing step are
// zero when Run returns an error.
type Result struct {
	RunID  string
	Mode   string
	Issues []csvparse.ParseIssue

	Headers  []string
	Fields   schema.FieldSet
	Mapping  matcher.Mapping
	Stale    []string
	Unmapped []string

	Combinations []combination.Combination
	Links        []output.Link
	Letters      []output.LetterRequest

	// Recipients are attached only when they passed the count and format
	// checks. RecipientErr holds the failed check otherwise.
	Recipients   []string
	RecipientErr error

	Export output.Table

	Stored       int64
	BatchID      string
	SubmitErrors []letters.APIError
}

// Artifacts returns the link URLs, or nil in letter mode.
func (r Result) Artifacts() []string {
	if r.Mode != ModeLink {
		return nil
	}
	return output.LinkURLs(r.Links)
}

// Run executes job. It stops at the first failing step and returns the
// partial Result with the error.
func (r *Runner) Run(ctx context.Context, job config.Job) (Result, error) {
	res := Result{RunID: r.NewID(), Mode: job.Mode}
	log := r.Logger.With(zap.String("job", job.Job), zap.String("run_id", res.RunID), zap.String("mode", job.Mode))

	var tbl schema.Table
	if err := r.step(log, "parse", func() (err error) {
		tbl, res.Issues, err = r.parse(ctx, job)
		return err
	}); err != nil {
		return res, err
	}
	log.Info("source parsed", zap.Int("rows", len(tbl.Rows)), zap.Int("headers", len(tbl.Headers)), zap.Int("issues", len(res.Issues)))
	for _, iss := range res.Issues {
		log.Warn("csv issue", zap.Int("line", iss.Line), zap.Error(iss.Err))
	}
	res.Headers = tbl.Headers

	var lay layout
	if err := r.step(log, "map", func() (err error) {
		switch job.Mode {
		case ModeLink:
			lay, err = linkLayout(job, tbl)
		case ModeLetter:
			lay, err = letterLayout(job, tbl)
		default:
			err = fmt.Errorf("unknown mode %q", job.Mode)
		}
		return err
	}); err != nil {
		return res, err
	}
	res.Fields, res.Mapping, res.Stale, res.Unmapped = lay.fields, lay.mapping, lay.stale, lay.unmapped
	if len(res.Stale) > 0 {
		log.Warn("manual mapping names a missing header; using suggestion", zap.Strings("fields", res.Stale))
	}
	if len(res.Unmapped) > 0 {
		log.Info("unmapped fields", zap.Strings("fields", res.Unmapped))
	}

	if err := r.step(log, "assemble", func() error {
		policy := values.PadRepeatLast
		if job.StrictLengths {
			policy = values.PadStrict
		}
		norm, err := values.Normalize(lay.raw, policy)
		if err != nil {
			return err
		}
		combos, err := combination.Assemble(norm)
		if err != nil {
			return err
		}
		if err := validate.Complete(res.Fields, combos); err != nil {
			return err
		}
		res.Combinations = combos
		return nil
	}); err != nil {
		return res, err
	}
	metrics.RecordCombinations(job.Mode, len(res.Combinations))
	log.Info("combinations built", zap.Int("fields", len(lay.raw)), zap.Int("combinations", len(res.Combinations)))

	if err := r.step(log, "serialize", func() error {
		switch job.Mode {
		case ModeLink:
			res.Links = output.BuildLinks(job.Link.BaseURL, res.Combinations)
			metrics.RecordArtifacts("link", len(res.Links))
		case ModeLetter:
			res.Letters = output.BuildLetterRequests(job.Fields, res.Mapping, res.Combinations)
			metrics.RecordArtifacts("letter", len(res.Letters))
		}
		return nil
	}); err != nil {
		return res, err
	}

	if job.Mode == ModeLetter && job.Letter.Notification.Method != "" {
		method := job.Letter.Notification.Method
		h, err := recipientHeader(method, job.Letter.Notification.RecipientColumn, tbl.Headers)
		if err == nil {
			res.Recipients, err = Recipients(method, tbl.Column(h), len(res.Combinations))
		}
		res.RecipientErr = err
		if res.RecipientErr != nil {
			log.Warn("recipients not attached", zap.Error(res.RecipientErr))
		}
	}

	exp := job.Export
	if job.Mode == ModeLetter {
		// Letters have no URL to show.
		exp.IncludeURL = false
	}
	res.Export = output.ExportTable(exp, res.Combinations, res.Artifacts())
	if err := r.step(log, "export", func() error {
		return r.export(job, res)
	}); err != nil {
		return res, err
	}

	var repo storage.Repository
	if job.Storage.Kind != "" {
		if err := r.step(log, "store", func() (err error) {
			repo, err = r.NewRepository(ctx, storage.Config{Kind: job.Storage.Kind, DSN: job.Storage.DSN})
			if err != nil {
				return fmt.Errorf("open %s store: %w", job.Storage.Kind, err)
			}
			res.Stored, err = r.store(ctx, repo, job, res)
			return err
		}); err != nil {
			if repo != nil {
				repo.Close()
			}
			return res, err
		}
		defer repo.Close()
		log.Info("artifacts stored", zap.Int64("inserted", res.Stored), zap.Int("generated", len(res.Combinations)))
	}

	if job.Mode == ModeLetter && r.Submitter != nil {
		if err := r.step(log, "submit", func() error {
			return r.submit(ctx, repo, job, &res)
		}); err != nil {
			for _, e := range res.SubmitErrors {
				log.Error("letter rejected", zap.String("id", e.ID), zap.String("message", e.Message))
			}
			return res, err
		}
		log.Info("letters submitted", zap.String("batch_id", res.BatchID), zap.Int("letters", len(res.Letters)))
	}

	return res, nil
}

// step runs fn, logs its outcome and records step metrics.
func (r *Runner) step(log *zap.Logger, name string, fn func() error) error {
	start := r.Now()
	err := fn()
	d := r.Now().Sub(start)
	metrics.RecordStep(name, err, d)

	fields := []zap.Field{zap.String("step", name), zap.Duration("duration", d)}
	if err != nil {
		log.Error("step failed", append(fields, zap.Error(err))...)
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Debug("step done", fields...)
	return nil
}

func (r *Runner) parse(ctx context.Context, job config.Job) (schema.Table, []csvparse.ParseIssue, error) {
	if job.Source.File == nil || job.Source.File.Path == "" {
		return schema.Table{}, nil, fmt.Errorf("source.file.path is required")
	}
	f, err := r.Open(job.Source.File.Path)
	if err != nil {
		return schema.Table{}, nil, schema.Errorf(schema.ErrCsvParse, "open %s: %v", job.Source.File.Path, err)
	}
	defer f.Close()

	tbl, issues, err := csvparse.ParseDelimitedText(ctx, f, job.Parser.Options)
	if err != nil {
		return tbl, issues, err
	}
	if err := validate.Table(tbl, nil); err != nil {
		return tbl, issues, err
	}
	return tbl, issues, nil
}
