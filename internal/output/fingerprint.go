package output

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"prefill/internal/combination"
)

// fingerprintSep is the ASCII unit separator (0x1f).
const fingerprintSep = "\x1f"

// Fingerprint returns a stable lowercase hex SHA-256 of a combination within
// a namespace (the base URL or letter template id).
//
// Canonical form: namespace, then "id=value" per field in field order, joined
// by the unit separator. Field names are included so that moving a value from
// one field to another changes the fingerprint. It is used as the dedupe key
// for stored artifacts.
func Fingerprint(namespace string, c combination.Combination) string {
	var b strings.Builder
	b.Grow(len(namespace) + len(c.Fields)*40)
	b.WriteString(namespace)
	for _, e := range c.Fields {
		b.WriteString(fingerprintSep)
		b.WriteString(e.ID)
		b.WriteByte('=')
		b.WriteString(e.Value)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
