package pipeline

import (
	"strings"

	"prefill/internal/config"
	"prefill/internal/contact"
	"prefill/internal/matcher"
	"prefill/internal/schema"
	"prefill/internal/validate"
	"prefill/internal/values"
)

// RecipientRules detect the recipient column of each notification method.
// The same rules let a target field named "email" or "sms" pick up such a
// column.
var RecipientRules = matcher.KeywordRules{
	{Field: validate.MethodEmail, Keywords: []string{"email", "e-mail", "mail"}},
	{Field: validate.MethodSMS, Keywords: []string{"phone", "mobile", "handphone", "contact"}},
}

// layout is the per-field raw values a sheet yields, with the mapping that
// produced them.
type layout struct {
	raw      []values.RawFieldValues
	fields   schema.FieldSet
	mapping  matcher.Mapping
	stale    []string
	unmapped []string
}

// linkLayout reads the field-per-row sheet: every row names one form field
// by id and lists its values in a single cell.
func linkLayout(job config.Job, tbl schema.Table) (layout, error) {
	if err := validate.FormURL(strings.TrimSpace(job.Link.BaseURL)); err != nil {
		return layout{}, err
	}

	cols := schema.FieldSet{
		{Name: job.Link.IDColumn, Required: true},
		{Name: job.Link.ValuesColumn, Required: true},
		{Name: job.Link.DescriptionColumn},
	}
	merged, stale := matcher.Merge(matcher.Suggest(cols, tbl.Headers), job.Mapping, tbl.Headers)
	out := layout{mapping: merged, stale: stale, unmapped: matcher.Unmapped(cols, merged)}
	for _, c := range cols.Required() {
		if _, ok := merged[c.Name]; !ok {
			return out, schema.Errorf(schema.ErrStructuralCsv, "no column for %q", c.Name)
		}
	}
	idH := merged[job.Link.IDColumn]
	valH := merged[job.Link.ValuesColumn]
	descH := merged[job.Link.DescriptionColumn]

	seen := make(map[string]int, len(tbl.Rows))
	for i, row := range tbl.Rows {
		id := strings.TrimSpace(row[idH])
		if err := validate.FieldID(id, i); err != nil {
			return out, err
		}
		if first, dup := seen[id]; dup {
			return out, schema.FieldErrorf(schema.ErrStructuralCsv, id, i, "field id already used on row %d", first+1)
		}
		seen[id] = i

		var desc string
		if descH != "" {
			desc = row[descH]
		}
		rv := values.FromCell(id, row[valH], desc, job.Delimiter)
		out.raw = append(out.raw, rv)
		out.fields = append(out.fields, schema.Field{Name: rv.ID, Required: true, Description: rv.Description})
	}
	return out, nil
}

// letterLayout reads the column-per-field sheet: every target field is one
// column and every row is one letter.
func letterLayout(job config.Job, tbl schema.Table) (layout, error) {
	m := matcher.Matcher{Rules: RecipientRules}
	merged, stale := matcher.Merge(m.Suggest(job.Fields, tbl.Headers), job.Mapping, tbl.Headers)
	out := layout{
		fields:   job.Fields,
		mapping:  merged,
		stale:    stale,
		unmapped: matcher.Unmapped(job.Fields, merged),
	}

	for _, f := range job.Fields {
		h, ok := merged[f.Name]
		if !ok {
			if f.Required {
				return out, schema.FieldErrorf(schema.ErrStructuralCsv, f.Name, -1, "no column for %q", f.Name)
			}
			continue
		}
		rv := values.FromColumn(f.Name, tbl.Column(h), f.Description)
		if len(rv.Values) == 0 && !f.Required {
			continue
		}
		out.raw = append(out.raw, rv)
	}
	if len(out.raw) == 0 {
		return out, schema.Errorf(schema.ErrStructuralCsv, "no target field is mapped to a column")
	}
	return out, nil
}

// recipientHeader returns the configured recipient column, or the column the
// method's keyword rule detects.
func recipientHeader(method, column string, headers []string) (string, error) {
	if column != "" {
		for _, h := range headers {
			if h == column {
				return h, nil
			}
		}
		return "", schema.FieldErrorf(schema.ErrStructuralCsv, "recipient", -1, "recipient column %q not found", column)
	}
	m := matcher.Matcher{Rules: RecipientRules}
	got := m.Suggest(schema.FieldSet{{Name: method}}, headers)
	h, ok := got[method]
	if !ok {
		return "", schema.FieldErrorf(schema.ErrStructuralCsv, "recipient", -1, "no %s recipient column found", method)
	}
	return h, nil
}

// Recipients checks a recipient column against the combinations it must
// accompany: one non-blank entry per combination, each valid for method.
// Phone numbers are returned with separators stripped. On any violation no
// recipients are returned; the combinations themselves are unaffected.
func Recipients(method string, cells []string, combinations int) ([]string, error) {
	list := make([]string, 0, len(cells))
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if method == validate.MethodSMS {
			c = contact.NormalizePhone(c)
		}
		list = append(list, c)
	}
	if err := validate.Count("recipients", len(list), combinations); err != nil {
		return nil, err
	}
	if err := validate.Recipients(method, list); err != nil {
		return nil, err
	}
	return list, nil
}
