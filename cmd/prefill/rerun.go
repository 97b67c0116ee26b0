package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"prefill/internal/config"
	"prefill/internal/output"
	"prefill/internal/storage"
)

// rerun writes the artifacts stored under runID to w as CSV, one row per
// artifact in index order.
func rerun(
	ctx context.Context,
	log *zap.Logger,
	open func(ctx context.Context, cfg storage.Config) (storage.Repository, error),
	job config.Job,
	runID string,
	w io.Writer,
) error {
	if job.Storage.Kind == "" {
		return fmt.Errorf("job %q has no storage configured", job.Job)
	}
	repo, err := open(ctx, storage.Config{Kind: job.Storage.Kind, DSN: job.Storage.DSN})
	if err != nil {
		return fmt.Errorf("open %s store: %w", job.Storage.Kind, err)
	}
	defer repo.Close()

	rows, err := repo.ListArtifacts(ctx, runID)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %q has no stored artifacts", runID)
	}

	t := output.Table{Header: []string{"index", "fingerprint", "label", "artifact"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{strconv.Itoa(r.Index), r.Fingerprint, r.Label, r.Artifact})
	}
	if err := output.WriteCSV(w, t); err != nil {
		return err
	}
	log.Info("artifacts re-exported", zap.String("run_id", runID), zap.Int("rows", len(rows)))
	return nil
}
