package output

import (
	"prefill/internal/combination"
	"prefill/internal/matcher"
	"prefill/internal/schema"
)

// LetterRequest is the parameter map for one letter.
type LetterRequest struct {
	Params map[string]string
}

// BuildLetterRequest keeps a target field when it is mapped to a column and
// is either required or has a non-empty value in c. Combination entries are
// keyed by field name.
func BuildLetterRequest(fields schema.FieldSet, m matcher.Mapping, c combination.Combination) LetterRequest {
	params := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, mapped := m[f.Name]; !mapped {
			continue
		}
		v, _ := c.Value(f.Name)
		if f.Required || v != "" {
			params[f.Name] = v
		}
	}
	return LetterRequest{Params: params}
}

// BuildLetterRequests renders one LetterRequest per combination.
func BuildLetterRequests(fields schema.FieldSet, m matcher.Mapping, combos []combination.Combination) []LetterRequest {
	out := make([]LetterRequest, len(combos))
	for i, c := range combos {
		out[i] = BuildLetterRequest(fields, m, c)
	}
	return out
}
