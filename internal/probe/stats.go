package probe

import (
	"fmt"
	"sort"
	"strings"

	"prefill/internal/contact"
	"prefill/internal/schema"
	"prefill/internal/validate"
	"prefill/internal/values"
)

// distinctCapPerColumn bounds the distinct set kept per column.
const distinctCapPerColumn = 10000

// Column kinds, most specific first.
const (
	KindEmpty   = "empty"
	KindFieldID = "field_id"
	KindEmail   = "email"
	KindPhone   = "phone"
	KindList    = "list"
	KindText    = "text"
)

// Column summarizes one sampled column.
type Column struct {
	Header string `json:"header"`
	Kind   string `json:"kind"`

	// Values counts rows with a non-blank cell; it is the denominator of the
	// uniqueness ratio.
	Values   int  `json:"values"`
	Distinct int  `json:"distinct"`
	Capped   bool `json:"capped,omitempty"`

	// Lists counts cells that split into more than one value.
	Lists int `json:"lists,omitempty"`
}

// Ratio is Distinct/Values, or 0 for an empty column.
func (c Column) Ratio() float64 {
	if c.Values <= 0 {
		return 0
	}
	return float64(c.Distinct) / float64(c.Values)
}

// columnStats computes per-column counts and a kind for every header.
func columnStats(tbl schema.Table, delimiter string) []Column {
	out := make([]Column, len(tbl.Headers))
	for i, h := range tbl.Headers {
		out[i] = columnFor(h, tbl.Column(h), delimiter)
	}
	return out
}

func columnFor(header string, cells []string, delimiter string) Column {
	c := Column{Header: header}
	seen := make(map[string]struct{})

	var ids, emails, phones int
	for _, v := range cells {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		c.Values++

		if !c.Capped {
			seen[v] = struct{}{}
			if len(seen) >= distinctCapPerColumn {
				c.Capped = true
				seen = nil
			}
		}

		if len(values.Split(v, delimiter)) > 1 {
			c.Lists++
		}
		if validate.FieldID(v, -1) == nil {
			ids++
		}
		switch contact.Classify(v) {
		case contact.KindEmail:
			emails++
		case contact.KindLocalPhone, contact.KindIntlPhone:
			phones++
		}
	}

	if c.Capped {
		c.Distinct = distinctCapPerColumn
	} else {
		c.Distinct = len(seen)
	}

	switch {
	case c.Values == 0:
		c.Kind = KindEmpty
	case ids == c.Values:
		c.Kind = KindFieldID
	case emails == c.Values:
		c.Kind = KindEmail
	case phones == c.Values:
		c.Kind = KindPhone
	case c.Lists > 0:
		c.Kind = KindList
	default:
		c.Kind = KindText
	}
	return c
}

// firstOfKind returns the first column of kind k.
func firstOfKind(cols []Column, k string) (Column, bool) {
	for _, c := range cols {
		if c.Kind == k {
			return c, true
		}
	}
	return Column{}, false
}

// FormatReport renders a column report sorted by uniqueness ratio, lowest
// first.
func FormatReport(rep Report) string {
	if rep.SampledRows <= 0 {
		return "columns: no rows sampled"
	}

	cols := make([]Column, 0, len(rep.Columns))
	for _, c := range rep.Columns {
		if c.Values > 0 {
			cols = append(cols, c)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Ratio() == cols[j].Ratio() {
			return cols[i].Header < cols[j].Header
		}
		return cols[i].Ratio() < cols[j].Ratio()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "column report:\tsampled_rows=%d\tmode=%s\n", rep.SampledRows, rep.Mode)
	fmt.Fprintf(&b, "%-20s\t%-8s\t%-7s\t%-7s\tratio\tcapped\n", "col", "kind", "unique", "rows")
	for _, c := range cols {
		fmt.Fprintf(&b, "%-20s\t%-8s\t%-7d\t%-7d\t%.1f%%\t%t\n",
			c.Header, c.Kind, c.Distinct, c.Values, c.Ratio()*100, c.Capped)
	}
	if len(rep.Unmapped) > 0 {
		fmt.Fprintf(&b, "unmapped fields: %s\n", strings.Join(rep.Unmapped, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
