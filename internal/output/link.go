package output

import (
	"net/url"
	"strings"

	"prefill/internal/combination"
)

// Link is a pre-filled resource URL and the field values it encodes.
type Link struct {
	URL    string
	Fields map[string]string
}

// BuildLink renders baseURL?id1=v1&id2=v2... in the combination's field order.
// Keys and values are percent-encoded the way browsers encode URI components,
// so spaces become %20 rather than "+".
func BuildLink(baseURL string, c combination.Combination) Link {
	var b strings.Builder
	b.Grow(len(baseURL) + 1 + len(c.Fields)*40)
	b.WriteString(baseURL)
	for i, e := range c.Fields {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(encodeComponent(e.ID))
		b.WriteByte('=')
		b.WriteString(encodeComponent(e.Value))
	}
	return Link{URL: b.String(), Fields: c.Map()}
}

// BuildLinks renders one Link per combination.
func BuildLinks(baseURL string, combos []combination.Combination) []Link {
	out := make([]Link, len(combos))
	for i, c := range combos {
		out[i] = BuildLink(baseURL, c)
	}
	return out
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
