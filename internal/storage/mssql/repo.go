// Package mssql is the SQL Server run store.
//
// This package does not import a driver. The "sqlserver" database/sql driver
// is registered by prefill/internal/storage/all.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"prefill/internal/storage"
)

// maxRowsPerInsert keeps a statement under the 2100 parameter limit.
const maxRowsPerInsert = 400

func init() {
	storage.Register("mssql", New)
}

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db  dbConn
	now func() time.Time
}

// New opens cfg.DSN with the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw, now: time.Now}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTables creates missing tables behind OBJECT_ID guards.
func (r *Repo) EnsureTables(ctx context.Context) error {
	for _, t := range storage.Tables() {
		for _, stmt := range buildCreateSQL(t) {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("mssql: create %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (r *Repo) SaveRun(ctx context.Context, run storage.Run) error {
	q := `INSERT INTO ` + mssqlIdent(storage.RunsTable) + ` ([id], [job], [mode], [source], [combinations], [created_at])
SELECT @p1, @p2, @p3, @p4, @p5, @p6
WHERE NOT EXISTS (SELECT 1 FROM ` + mssqlIdent(storage.RunsTable) + ` WHERE [id] = @p1);`
	_, err := r.db.ExecContext(ctx, q, run.ID, run.Job, run.Mode, run.Source, run.Combinations, run.CreatedAt.UTC())
	return err
}

// InsertArtifacts dedupes rows in memory first: NOT EXISTS only guards
// against rows already in the table, not duplicates inside one VALUES list.
func (r *Repo) InsertArtifacts(ctx context.Context, runID string, rows []storage.ArtifactRow) (int64, error) {
	rows = storage.DedupeArtifacts(rows)
	if len(rows) == 0 {
		return 0, nil
	}

	var total int64
	for _, chunk := range storage.Chunk(storage.ArtifactValues(runID, rows), maxRowsPerInsert) {
		q, args := buildInsertNotExistsSQL(storage.ArtifactsTable, storage.ArtifactColumns, chunk, []string{"fingerprint"})
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("mssql: insert artifacts: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *Repo) MarkSubmitted(ctx context.Context, runID, batchID string) error {
	q := `UPDATE ` + mssqlIdent(storage.RunsTable) + ` SET [batch_id] = @p1, [submitted_at] = @p2 WHERE [id] = @p3;`
	res, err := r.db.ExecContext(ctx, q, batchID, r.now().UTC(), runID)
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
	q := `SELECT [fingerprint], [idx], [artifact], [label] FROM ` + mssqlIdent(storage.ArtifactsTable) + ` WHERE [run_id] = @p1 ORDER BY [idx];`
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

// buildInsertNotExistsSQL materializes rows as a derived table v and inserts
// only those with no matching dedupeColumns in table.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	cols := joinIdents(columns, "")

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" (")
	b.WriteString(cols)
	b.WriteString(") SELECT ")
	b.WriteString(joinIdents(columns, "v."))
	b.WriteString(" FROM (VALUES ")

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
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(") AS v(")
	b.WriteString(cols)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" t WHERE ")
	for i, dc := range dedupeColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t." + mssqlIdent(dc) + " = v." + mssqlIdent(dc))
	}
	b.WriteString(");")
	return b.String(), args
}

// buildCreateSQL returns guarded CREATE TABLE / CREATE INDEX statements.
func buildCreateSQL(t storage.TableSpec) []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		d := mssqlIdent(c.Name) + " " + mssqlType(c.Type)
		if !c.Nullable {
			d += " NOT NULL"
		}
		defs = append(defs, d)
	}
	if t.PrimaryKey != "" {
		defs = append(defs, "PRIMARY KEY ("+mssqlIdent(t.PrimaryKey)+")")
	}
	out := []string{fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		t.Name, mssqlIdent(t.Name), strings.Join(defs, ", "),
	)}
	if len(t.Index) > 0 {
		name := t.Name + "_" + strings.Join(t.Index, "_") + "_idx"
		out = append(out, fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s') CREATE INDEX %s ON %s (%s);",
			name, mssqlIdent(name), mssqlIdent(t.Name), joinIdents(t.Index, ""),
		))
	}
	return out
}

func mssqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeKey:
		return "NVARCHAR(64)"
	case storage.TypeInt:
		return "INT"
	case storage.TypeTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func joinIdents(cols []string, prefix string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = prefix + mssqlIdent(c)
	}
	return strings.Join(q, ", ")
}

// dbConn is the subset of *sql.DB the repo uses.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

var _ dbConn = (*sql.DB)(nil)
