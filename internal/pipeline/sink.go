package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"prefill/internal/config"
	"prefill/internal/letters"
	"prefill/internal/output"
	"prefill/internal/schema"
	"prefill/internal/storage"
)

// export writes the results and template CSVs the job asks for. The two
// files are written concurrently and must differ.
func (r *Runner) export(job config.Job, res Result) error {
	results, template := job.Output.ResultsCSV, job.Output.TemplateCSV
	if results != "" && results == template {
		return fmt.Errorf("results_csv and template_csv both name %q", results)
	}

	var g errgroup.Group
	if results != "" {
		g.Go(func() error {
			if err := r.writeCSV(results, res.Export); err != nil {
				return fmt.Errorf("results csv: %w", err)
			}
			return nil
		})
	}
	if template != "" {
		g.Go(func() error {
			if err := r.writeCSV(template, Template(job, res)); err != nil {
				return fmt.Errorf("template csv: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) writeCSV(path string, t output.Table) error {
	w, err := r.Create(path)
	if err != nil {
		return err
	}
	if err := output.WriteCSV(w, t); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Template is the downloadable template for the job's sheet layout. In link
// mode it has the id, values and description columns with one identity row
// per field (values left blank). In letter mode it has one column per target
// field and the first combination as an example row.
func Template(job config.Job, res Result) output.Table {
	if job.Mode == ModeLink {
		cols := schema.FieldSet{
			{Name: job.Link.IDColumn},
			{Name: job.Link.ValuesColumn},
			{Name: job.Link.DescriptionColumn},
		}
		rows := make([]map[string]string, len(res.Fields))
		for i, f := range res.Fields {
			rows[i] = map[string]string{
				job.Link.IDColumn:          f.Name,
				job.Link.DescriptionColumn: f.Description,
			}
		}
		return output.TemplateTable(cols, rows)
	}

	var rows []map[string]string
	if len(res.Combinations) > 0 {
		rows = append(rows, res.Combinations[0].Map())
	}
	return output.TemplateTable(job.Fields, rows)
}

// namespace scopes fingerprints so the same values under another form or
// template are distinct artifacts.
func namespace(job config.Job) string {
	if job.Mode == ModeLink {
		return strings.TrimSpace(job.Link.BaseURL)
	}
	return "letter:" + strings.TrimSpace(job.Letter.TemplateID)
}

// ArtifactRows renders one storage row per combination.
func ArtifactRows(job config.Job, res Result) ([]storage.ArtifactRow, error) {
	ns := namespace(job)
	rows := make([]storage.ArtifactRow, len(res.Combinations))
	for i, c := range res.Combinations {
		var artifact string
		switch {
		case i < len(res.Links):
			artifact = res.Links[i].URL
		case i < len(res.Letters):
			b, err := json.Marshal(res.Letters[i].Params)
			if err != nil {
				return nil, fmt.Errorf("encode letter %d: %w", i, err)
			}
			artifact = string(b)
		}
		var label string
		if lf := job.Export.LabelField; lf != "" {
			label, _ = c.Value(lf)
		}
		rows[i] = storage.ArtifactRow{
			Fingerprint: output.Fingerprint(ns, c),
			Index:       c.Index,
			Artifact:    artifact,
			Label:       label,
		}
	}
	return rows, nil
}

func (r *Runner) store(ctx context.Context, repo storage.Repository, job config.Job, res Result) (int64, error) {
	rows, err := ArtifactRows(job, res)
	if err != nil {
		return 0, err
	}
	if err := repo.EnsureTables(ctx); err != nil {
		return 0, err
	}
	var source string
	if job.Source.File != nil {
		source = job.Source.File.Path
	}
	if err := repo.SaveRun(ctx, storage.Run{
		ID:           res.RunID,
		Job:          job.Job,
		Mode:         job.Mode,
		Source:       source,
		Combinations: len(res.Combinations),
		CreatedAt:    r.Now().UTC(),
	}); err != nil {
		return 0, err
	}
	return repo.InsertArtifacts(ctx, res.RunID, rows)
}

// errRecipientsRequired stops a submission whose notification recipients
// failed their checks.
var errRecipientsRequired = errors.New("notification recipients failed validation")

// submit sends the letters and, when repo is set, records the batch id.
func (r *Runner) submit(ctx context.Context, repo storage.Repository, job config.Job, res *Result) error {
	var n *letters.Notification
	if m := job.Letter.Notification.Method; m != "" {
		if res.RecipientErr != nil {
			return fmt.Errorf("%w: %w", errRecipientsRequired, res.RecipientErr)
		}
		n = &letters.Notification{Method: m, Recipients: res.Recipients}
	}

	req, err := letters.BuildBulkRequest(job.Letter.TemplateID, res.Letters, n)
	if err != nil {
		return err
	}
	out, err := r.Submitter.Submit(ctx, req)
	res.SubmitErrors = out.Errors
	if err != nil {
		return err
	}
	res.BatchID = out.BatchID

	if repo == nil {
		return nil
	}
	return repo.MarkSubmitted(ctx, res.RunID, res.BatchID)
}
