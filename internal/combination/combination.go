// Package combination zips normalized per-field value lists into one
// combination per index.
package combination

import (
	"errors"
	"fmt"

	"prefill/internal/values"
)

// ErrInvariant reports input that did not come from values.Normalize. It is
// a programming error, not a user-facing validation kind.
var ErrInvariant = errors.New("combination: unequal value list lengths")

// Entry is one field's value within a combination. Description and
// IsSingleValue are copied from the field, so they are the same for every
// combination.
type Entry struct {
	ID            string
	Value         string
	Description   string
	IsSingleValue bool
}

// Combination is one fully resolved row. Fields keep field declaration order.
type Combination struct {
	Index  int
	Fields []Entry
}

// Value returns the value for field id.
func (c Combination) Value(id string) (string, bool) {
	for _, e := range c.Fields {
		if e.ID == id {
			return e.Value, true
		}
	}
	return "", false
}

// Map returns the combination as id -> value.
func (c Combination) Map() map[string]string {
	out := make(map[string]string, len(c.Fields))
	for _, e := range c.Fields {
		out[e.ID] = e.Value
	}
	return out
}

// Assemble builds combinations 0..n-1 where n is the common list length.
func Assemble(fields []values.NormalizedFieldValues) ([]Combination, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	n := len(fields[0].Values)
	for _, f := range fields[1:] {
		if len(f.Values) != n {
			return nil, fmt.Errorf("%w: field %q has %d values, want %d", ErrInvariant, f.ID, len(f.Values), n)
		}
	}

	out := make([]Combination, n)
	for i := 0; i < n; i++ {
		entries := make([]Entry, len(fields))
		for j, f := range fields {
			entries[j] = Entry{
				ID:            f.ID,
				Value:         f.Values[i],
				Description:   f.Description,
				IsSingleValue: f.IsSingleValue,
			}
		}
		out[i] = Combination{Index: i, Fields: entries}
	}
	return out, nil
}
