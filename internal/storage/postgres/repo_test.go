package postgres

import (
	"strings"
	"testing"

	"prefill/internal/storage"
)

func TestBuildInsertSQL_PlaceholdersAndConflict(t *testing.T) {
	t.Parallel()

	rows := [][]any{{"f1", "r", 0}, {"f2", "r", 1}}
	sql, args := buildInsertSQL("prefill_artifacts", []string{"fingerprint", "run_id", "idx"}, rows, []string{"fingerprint"})

	want := `INSERT INTO prefill_artifacts ("fingerprint", "run_id", "idx") VALUES ($1, $2, $3), ($4, $5, $6) ON CONFLICT ("fingerprint") DO NOTHING;`
	if sql != want {
		t.Fatalf("sql=\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 6 || args[3] != "f2" || args[5] != 1 {
		t.Fatalf("args=%v", args)
	}
}

func TestBuildInsertSQL_NoDedupe(t *testing.T) {
	t.Parallel()

	sql, _ := buildInsertSQL("t", []string{"a"}, [][]any{{1}}, nil)
	if strings.Contains(sql, "ON CONFLICT") {
		t.Fatalf("unexpected ON CONFLICT: %s", sql)
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	var runs, arts []string
	for _, ts := range storage.Tables() {
		switch ts.Name {
		case storage.RunsTable:
			runs = buildCreateSQL(ts)
		case storage.ArtifactsTable:
			arts = buildCreateSQL(ts)
		}
	}
	if len(runs) != 1 {
		t.Fatalf("runs statements=%d, want 1", len(runs))
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS prefill_runs",
		`"created_at" timestamptz NOT NULL`,
		`"submitted_at" timestamptz,`,
		`PRIMARY KEY ("id")`,
	} {
		if !strings.Contains(runs[0], want) {
			t.Fatalf("runs DDL missing %q:\n%s", want, runs[0])
		}
	}
	if len(arts) != 2 || !strings.Contains(arts[1], `CREATE INDEX IF NOT EXISTS prefill_artifacts_run_id_idx_idx ON prefill_artifacts ("run_id", "idx");`) {
		t.Fatalf("artifacts DDL=%v", arts)
	}
}

func TestPgIdent_EscapesQuotes(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`a"b`); got != `"a""b"` {
		t.Fatalf("pgIdent=%s", got)
	}
}
