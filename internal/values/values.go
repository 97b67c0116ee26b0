// Package values turns raw cell text into per-field value lists and equalizes
// their lengths so they can be zipped into combinations.
package values

import (
	"strings"

	"prefill/internal/schema"
)

// DefaultDelimiter separates values inside one cell.
const DefaultDelimiter = ","

// RawFieldValues is one field's values as supplied, before length
// equalization.
type RawFieldValues struct {
	ID            string
	Description   string
	Values        []string
	IsSingleValue bool
}

// NormalizedFieldValues is RawFieldValues after Normalize. Every field in one
// normalized set has the same len(Values).
type NormalizedFieldValues struct {
	ID            string
	Description   string
	Values        []string
	IsSingleValue bool
}

// Split splits text on delimiter, trims each token and drops empty tokens.
// An empty delimiter means DefaultDelimiter.
func Split(text, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	parts := strings.Split(text, delimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromCell builds a field whose values are the delimited list inside one cell.
func FromCell(id, cell, description, delimiter string) RawFieldValues {
	vs := Split(cell, delimiter)
	return RawFieldValues{
		ID:            strings.TrimSpace(id),
		Description:   strings.TrimSpace(description),
		Values:        vs,
		IsSingleValue: len(vs) == 1,
	}
}

// FromColumn builds a field from one column, one value per row.
//
// Cells are trimmed but empty cells are kept in place so the values stay
// aligned with their rows; a blank cell in a required field is reported later
// by the completeness check. A column with no non-empty cell at all has no
// values.
func FromColumn(id string, cells []string, description string) RawFieldValues {
	vs := make([]string, len(cells))
	nonEmpty := 0
	for i, c := range cells {
		vs[i] = strings.TrimSpace(c)
		if vs[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		vs = nil
	}
	return RawFieldValues{
		ID:            id,
		Description:   description,
		Values:        vs,
		IsSingleValue: len(vs) == 1,
	}
}

// PadPolicy decides what happens when multi-value fields have different
// lengths.
type PadPolicy int

const (
	// PadRepeatLast pads a shorter list by repeating its last value.
	PadRepeatLast PadPolicy = iota
	// PadStrict rejects lists whose length is neither 1 nor the maximum.
	PadStrict
)

func (p PadPolicy) String() string {
	switch p {
	case PadRepeatLast:
		return "repeat_last"
	case PadStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// MaxValues returns the longest value list length among fields.
func MaxValues(fields []RawFieldValues) int {
	n := 0
	for _, f := range fields {
		if len(f.Values) > n {
			n = len(f.Values)
		}
	}
	return n
}

// Normalize equalizes all value lists to MaxValues(fields).
//
//   - a single value is broadcast to every index;
//   - a shorter multi-value list is padded with copies of its last value
//     (PadRepeatLast) or rejected with ErrCountMismatch (PadStrict);
//   - a list already at the maximum is used unchanged.
//
// A field with no values fails with ErrEmptyValues. The inputs are not
// modified.
func Normalize(fields []RawFieldValues, policy PadPolicy) ([]NormalizedFieldValues, error) {
	for _, f := range fields {
		if len(f.Values) == 0 {
			return nil, schema.FieldErrorf(schema.ErrEmptyValues, f.ID, -1, "no usable values after splitting")
		}
	}

	maxValues := MaxValues(fields)
	out := make([]NormalizedFieldValues, len(fields))
	for i, f := range fields {
		vs := make([]string, maxValues)
		n := copy(vs, f.Values)
		if n < maxValues {
			if n > 1 && policy == PadStrict {
				return nil, schema.FieldErrorf(schema.ErrCountMismatch, f.ID, -1,
					"has %d values, other fields have %d", n, maxValues)
			}
			last := f.Values[n-1]
			for j := n; j < maxValues; j++ {
				vs[j] = last
			}
		}
		out[i] = NormalizedFieldValues{
			ID:            f.ID,
			Description:   f.Description,
			Values:        vs,
			IsSingleValue: len(f.Values) == 1,
		}
	}
	return out, nil
}
