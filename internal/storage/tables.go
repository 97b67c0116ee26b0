package storage

// Table names.
const (
	RunsTable      = "prefill_runs"
	ArtifactsTable = "prefill_artifacts"
)

// ColumnType is a backend-neutral column type. Each backend maps it to its
// own SQL type.
type ColumnType int

const (
	// TypeKey is a short indexed string (uuid, hex digest).
	TypeKey ColumnType = iota
	TypeText
	TypeInt
	TypeTime
)

// ColumnSpec describes one column.
type ColumnSpec struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// TableSpec describes one table. PrimaryKey names a single column.
type TableSpec struct {
	Name       string
	PrimaryKey string
	Columns    []ColumnSpec
	// Index is an optional secondary index column list.
	Index []string
}

// ArtifactColumns is the insert column order for ArtifactsTable.
var ArtifactColumns = []string{"fingerprint", "run_id", "idx", "artifact", "label"}

// Tables returns the schema every backend creates.
func Tables() []TableSpec {
	return []TableSpec{
		{
			Name:       RunsTable,
			PrimaryKey: "id",
			Columns: []ColumnSpec{
				{Name: "id", Type: TypeKey},
				{Name: "job", Type: TypeText},
				{Name: "mode", Type: TypeKey},
				{Name: "source", Type: TypeText},
				{Name: "combinations", Type: TypeInt},
				{Name: "created_at", Type: TypeTime},
				{Name: "batch_id", Type: TypeKey, Nullable: true},
				{Name: "submitted_at", Type: TypeTime, Nullable: true},
			},
		},
		{
			Name:       ArtifactsTable,
			PrimaryKey: "fingerprint",
			Columns: []ColumnSpec{
				{Name: "fingerprint", Type: TypeKey},
				{Name: "run_id", Type: TypeKey},
				{Name: "idx", Type: TypeInt},
				{Name: "artifact", Type: TypeText},
				{Name: "label", Type: TypeText},
			},
			Index: []string{"run_id", "idx"},
		},
	}
}

// ArtifactValues lays rows out in ArtifactColumns order.
func ArtifactValues(runID string, rows []ArtifactRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Fingerprint, runID, r.Index, r.Artifact, r.Label}
	}
	return out
}

// Chunk splits rows into batches of at most n. n <= 0 yields one batch.
func Chunk[T any](rows []T, n int) [][]T {
	if len(rows) == 0 {
		return nil
	}
	if n <= 0 || n >= len(rows) {
		return [][]T{rows}
	}
	out := make([][]T, 0, (len(rows)+n-1)/n)
	for len(rows) > n {
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return append(out, rows)
}
