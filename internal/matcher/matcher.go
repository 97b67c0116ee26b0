package matcher

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"prefill/internal/schema"
)

// Mapping maps a target field name to the chosen header. A field with no
// entry is unmapped.
type Mapping map[string]string

// Clone returns an independent copy of m.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// KeywordRule declares extra header keywords for a field, e.g. a recipient
// field that should pick up an "E-mail Address" column.
type KeywordRule struct {
	Field    string
	Keywords []string
}

// KeywordRules is a declarative list of (field, keywords) pairs. New field
// kinds are added by appending a rule.
type KeywordRules []KeywordRule

// Matcher suggests mappings. The zero value uses only the keywords declared
// on the fields themselves.
type Matcher struct {
	Rules KeywordRules
}

// Suggest is Matcher{}.Suggest.
func Suggest(fields schema.FieldSet, headers []string) Mapping {
	return Matcher{}.Suggest(fields, headers)
}

// Suggest proposes a header for every field it can match. It is pure and
// idempotent: the same inputs always give the same mapping.
func (m Matcher) Suggest(fields schema.FieldSet, headers []string) Mapping {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = fold(h)
	}

	out := make(Mapping, len(fields))
	for _, f := range fields {
		if h, ok := m.matchField(f, headers, folded); ok {
			out[f.Name] = h
		}
	}
	return out
}

func (m Matcher) matchField(f schema.Field, headers, folded []string) (string, bool) {
	name := fold(f.Name)
	if name == "" {
		return "", false
	}

	for i, h := range folded {
		if h == name {
			return headers[i], true
		}
	}

	for i, h := range folded {
		if h == "" {
			continue
		}
		if strings.Contains(h, name) || strings.Contains(name, h) {
			return headers[i], true
		}
	}

	kws := m.keywordsFor(f)
	if len(kws) == 0 {
		return "", false
	}
	for i, h := range folded {
		for _, kw := range kws {
			if kw != "" && strings.Contains(h, kw) {
				return headers[i], true
			}
		}
	}
	return "", false
}

func (m Matcher) keywordsFor(f schema.Field) []string {
	var out []string
	for _, kw := range f.Keywords {
		out = append(out, fold(kw))
	}
	for _, r := range m.Rules {
		if r.Field != f.Name {
			continue
		}
		for _, kw := range r.Keywords {
			out = append(out, fold(kw))
		}
	}
	return out
}

// Merge overlays manual choices on an auto-suggestion.
//
// A manual entry always wins over the suggestion for its field, including an
// empty header, which means the user explicitly unmapped the field. A manual
// entry naming a header that is no longer present is stale: the suggestion is
// used for that field and the field name is returned in stale.
func Merge(auto, manual Mapping, headers []string) (merged Mapping, stale []string) {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	merged = auto.Clone()
	for field, h := range manual {
		if h == "" {
			delete(merged, field)
			continue
		}
		if _, ok := present[h]; !ok {
			stale = append(stale, field)
			continue
		}
		merged[field] = h
	}
	sort.Strings(stale)
	return merged, stale
}

// Unmapped returns the names of fields with no header, in declaration order.
func Unmapped(fields schema.FieldSet, m Mapping) []string {
	var out []string
	for _, f := range fields {
		if _, ok := m[f.Name]; !ok {
			out = append(out, f.Name)
		}
	}
	return out
}

// fold trims and case-folds s. Casers are stateful; never share one.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
