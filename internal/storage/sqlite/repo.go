// Package sqlite is the SQLite run store, on the pure Go modernc.org/sqlite
// driver. Timestamps are stored as RFC3339Nano text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"prefill/internal/storage"
)

// maxRowsPerInsert keeps a batch under SQLite's bind variable limit.
const maxRowsPerInsert = 500

func init() {
	storage.Register("sqlite", New)
}

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database file named by cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, now: time.Now}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTables creates the tables and indexes if missing.
func (r *Repo) EnsureTables(ctx context.Context) error {
	for _, t := range storage.Tables() {
		for _, stmt := range buildCreateSQL(t) {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite: create %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (r *Repo) SaveRun(ctx context.Context, run storage.Run) error {
	q := `INSERT OR IGNORE INTO ` + storage.RunsTable + ` (id, job, mode, source, combinations, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, run.ID, run.Job, run.Mode, run.Source, run.Combinations, formatSQLiteTime(run.CreatedAt))
	return err
}

// InsertArtifacts relies on INSERT OR IGNORE against the fingerprint primary
// key, which also collapses duplicates inside one batch.
func (r *Repo) InsertArtifacts(ctx context.Context, runID string, rows []storage.ArtifactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, chunk := range storage.Chunk(storage.ArtifactValues(runID, rows), maxRowsPerInsert) {
		q, args := buildInsertOrIgnoreSQL(storage.ArtifactsTable, storage.ArtifactColumns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert artifacts: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repo) MarkSubmitted(ctx context.Context, runID, batchID string) error {
	q := `UPDATE ` + storage.RunsTable + ` SET batch_id = ?, submitted_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, batchID, formatSQLiteTime(r.now()), runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}
	return nil
}

func (r *Repo) ListArtifacts(ctx context.Context, runID string) ([]storage.ArtifactRow, error) {
	q := `SELECT fingerprint, idx, artifact, label FROM ` + storage.ArtifactsTable + ` WHERE run_id = ? ORDER BY idx`
	rows, err := r.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ArtifactRow
	for rows.Next() {
		var a storage.ArtifactRow
		if err := rows.Scan(&a.Fingerprint, &a.Index, &a.Artifact, &a.Label); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// loadRun reads one run back.
func (r *Repo) loadRun(ctx context.Context, id string) (storage.Run, error) {
	q := `SELECT id, job, mode, source, combinations, created_at, batch_id, submitted_at FROM ` + storage.RunsTable + ` WHERE id = ?`
	var (
		run                storage.Run
		created            string
		batchID, submitted sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&run.ID, &run.Job, &run.Mode, &run.Source, &run.Combinations, &created, &batchID, &submitted)
	if errors.Is(err, sql.ErrNoRows) {
		return run, storage.ErrRunNotFound
	}
	if err != nil {
		return run, err
	}
	if run.CreatedAt, err = parseSQLiteTime(created); err != nil {
		return run, err
	}
	run.BatchID = batchID.String
	if submitted.Valid {
		if run.SubmittedAt, err = parseSQLiteTime(submitted.String); err != nil {
			return run, err
		}
	}
	return run, nil
}

func buildInsertOrIgnoreSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") VALUES ")

	one := "(" + strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(one)
		args = append(args, row[:len(columns)]...)
	}
	return b.String(), args
}

func buildCreateSQL(t storage.TableSpec) []string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		d := sqlIdent(c.Name) + " " + sqliteType(c.Type)
		if c.Name == t.PrimaryKey {
			d += " PRIMARY KEY"
		}
		if !c.Nullable {
			d += " NOT NULL"
		}
		defs = append(defs, d)
	}
	out := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", "))}
	if len(t.Index) > 0 {
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s)",
			t.Name, strings.Join(t.Index, "_"), t.Name, joinIdents(t.Index)))
	}
	return out
}

func sqliteType(t storage.ColumnType) string {
	if t == storage.TypeInt {
		return "INTEGER"
	}
	return "TEXT"
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func joinIdents(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = sqlIdent(c)
	}
	return strings.Join(q, ", ")
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime accepts RFC3339(Nano) and SQLite's "YYYY-MM-DD HH:MM:SS"
// forms; a value without a zone is taken as UTC.
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("sqlite: unrecognized time %q", s)
}
