package storage

import "strings"

// DedupeArtifacts drops rows whose fingerprint already appeared earlier in
// rows, keeping the first occurrence and the original order. Fingerprints are
// compared after trimming; rows with an empty fingerprint are dropped.
//
// Backends whose dedupe statement does not collapse duplicates inside one
// batch (SQL Server NOT EXISTS) rely on this.
func DedupeArtifacts(rows []ArtifactRow) []ArtifactRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]ArtifactRow, 0, len(rows))
	for _, r := range rows {
		k := strings.TrimSpace(r.Fingerprint)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		r.Fingerprint = k
		out = append(out, r)
	}
	return out
}
