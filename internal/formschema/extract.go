// Package formschema discovers the target fields of a published form page:
// field ids, their labels and whether they are required.
package formschema

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prefill/internal/schema"
)

// Extract parses html and returns one field per distinct id, in document
// order. The label becomes the field description.
func Extract(html string, rules Rules) (schema.FieldSet, error) {
	re, err := rules.compile()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var fields schema.FieldSet
	seen := map[string]struct{}{}
	doc.Find(rules.FieldSelector).Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr(rules.IDAttr)
		id := applyRegexFilter(strings.TrimSpace(raw), re)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		fields = append(fields, schema.Field{
			Name:        id,
			Description: labelFor(doc, sel, raw, rules.LabelSelector),
			Required:    isRequired(sel),
		})
	})

	if len(fields) == 0 {
		return nil, fmt.Errorf("no form fields matched %q", rules.FieldSelector)
	}
	return fields, nil
}

func labelFor(doc *goquery.Document, sel *goquery.Selection, rawID, labelSelector string) string {
	if labelSelector != "" {
		anc := sel.Parent()
		for i := 0; i < 3 && anc.Length() > 0; i++ {
			if l := anc.Find(labelSelector).First(); l.Length() > 0 {
				return cleanLabel(l.Text())
			}
			anc = anc.Parent()
		}
	}
	if rawID != "" {
		if l := doc.Find(`label[for="` + rawID + `"]`).First(); l.Length() > 0 {
			return cleanLabel(l.Text())
		}
	}
	for _, attr := range []string{"aria-label", "placeholder"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return cleanLabel(v)
		}
	}
	return ""
}

// cleanLabel collapses whitespace and drops a trailing required marker.
func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.TrimSuffix(s, "*"))
}

func isRequired(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("required"); ok {
		return true
	}
	v, _ := sel.Attr("aria-required")
	return strings.EqualFold(v, "true")
}

// DebugPrintSelector prints the outer HTML (or trimmed text) of every match
// for selector, each followed by a blank line. It helps when writing rules.
func DebugPrintSelector(w io.Writer, html, selector string, textOnly bool) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if textOnly {
			fmt.Fprintln(w, strings.TrimSpace(s.Text()))
			fmt.Fprintln(w)
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			out, _ = s.Html()
		}
		fmt.Fprintln(w, out)
		fmt.Fprintln(w)
	})
	return nil
}
