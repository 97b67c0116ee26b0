// Package postgres is the Postgres run store, on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prefill/internal/storage"
)

// maxRowsPerInsert keeps a batch well under the 65535 bind parameter limit.
const maxRowsPerInsert = 1000

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a pool for cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

// EnsureTables creates the tables and indexes if missing.
func (r *Repo) EnsureTables(ctx context.Context) error {
	for _, t := range storage.Tables() {
		for _, stmt := range buildCreateSQL(t) {
			if _, err := r.pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("postgres: create %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// SaveRun inserts run; saving the same id twice is a no-op.
func (r *Repo) SaveRun(ctx context.Context, run storage.Run) error {
	q := `INSERT INTO ` + storage.RunsTable + ` (id, job, mode, source, combinations, created_at)
VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING;`
	_, err := r.pool.Exec(ctx, q, run.ID, run.Job, run.Mode, run.Source, run.Combinations, run.CreatedAt.UTC())
	return err
}

// InsertArtifacts inserts rows with ON CONFLICT (fingerprint) DO NOTHING, in
// one transaction.
func (r *Repo) InsertArtifacts(ctx context.Context, runID string, rows []storage.ArtifactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, chunk := range storage.Chunk(storage.ArtifactValues(runID, rows), maxRowsPerInsert) {
		q, args := buildInsertSQL(storage.ArtifactsTable, storage.ArtifactColumns, chunk, []string{"fingerprint"})
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert artifacts: %w", err)
		}
		total += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// MarkSubmitted stamps the run with batchID.
func (r *Repo) MarkSubmitted(ctx context.Context, runID, batchID string) error {
	q := `UPDATE ` + storage.RunsTable + ` SET batch_id = $1, submitted_at = $2 WHERE id = $3;`
	tag, err := r.pool.Exec(ctx, q, batchID, time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}
	return nil
}

// ListArtifacts returns the rows stored for runID ordered by index.
func (r *Repo) ListArtifacts(ctx context.Context, runID string) ([]storage.ArtifactRow, error) {
	q := `SELECT fingerprint, idx, artifact, label FROM ` + storage.ArtifactsTable + ` WHERE run_id = $1 ORDER BY idx;`
	rows, err := r.pool.Query(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ArtifactRow, error) {
		var a storage.ArtifactRow
		err := row.Scan(&a.Fingerprint, &a.Index, &a.Artifact, &a.Label)
		return a, err
	})
}

// buildInsertSQL constructs one multi-row INSERT with numbered placeholders.
// A non-empty dedupeColumns appends ON CONFLICT (...) DO NOTHING.
func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(dedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(joinIdents(dedupeColumns))
		b.WriteString(") DO NOTHING")
	}
	b.WriteString(";")
	return b.String(), args
}

// buildCreateSQL returns the CREATE TABLE and optional CREATE INDEX
// statements for t.
func buildCreateSQL(t storage.TableSpec) []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		d := pgIdent(c.Name) + " " + pgType(c.Type)
		if !c.Nullable {
			d += " NOT NULL"
		}
		defs = append(defs, d)
	}
	if t.PrimaryKey != "" {
		defs = append(defs, "PRIMARY KEY ("+pgIdent(t.PrimaryKey)+")")
	}
	out := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(defs, ",\n  "))}
	if len(t.Index) > 0 {
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s);",
			t.Name, strings.Join(t.Index, "_"), t.Name, joinIdents(t.Index)))
	}
	return out
}

func pgType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInt:
		return "integer"
	case storage.TypeTime:
		return "timestamptz"
	default:
		return "text"
	}
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func joinIdents(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = pgIdent(c)
	}
	return strings.Join(q, ", ")
}
