package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"prefill/internal/combination"
	"prefill/internal/schema"
)

// Export column headers. They are part of the results CSV contract.
const (
	LabelHeader = "Label"
	URLHeader   = "Form URL"
)

// ExportConfig selects the columns of the results table. It never affects
// generation.
type ExportConfig struct {
	IncludeURL       bool     `json:"include_url" yaml:"include_url"`
	LabelField       string   `json:"label_field,omitempty" yaml:"label_field,omitempty"`
	AdditionalFields []string `json:"additional_fields,omitempty" yaml:"additional_fields,omitempty"`
}

// Table is a header row plus data rows, every row as wide as Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// ExportTable renders one row per combination with columns, in order:
// Label (when LabelField is set), Form URL (when IncludeURL), then one column
// per additional field headed by that field's description or, failing that,
// its id. artifacts[i] is the URL or identifier of combination i; a missing
// entry renders as "".
func ExportTable(cfg ExportConfig, combos []combination.Combination, artifacts []string) Table {
	var header []string
	if cfg.LabelField != "" {
		header = append(header, LabelHeader)
	}
	if cfg.IncludeURL {
		header = append(header, URLHeader)
	}
	for _, id := range cfg.AdditionalFields {
		header = append(header, columnTitle(id, combos))
	}

	rows := make([][]string, len(combos))
	for i, c := range combos {
		row := make([]string, 0, len(header))
		if cfg.LabelField != "" {
			v, _ := c.Value(cfg.LabelField)
			row = append(row, v)
		}
		if cfg.IncludeURL {
			a := ""
			if i < len(artifacts) {
				a = artifacts[i]
			}
			row = append(row, a)
		}
		for _, id := range cfg.AdditionalFields {
			v, _ := c.Value(id)
			row = append(row, v)
		}
		rows[i] = row
	}
	return Table{Header: header, Rows: rows}
}

func columnTitle(id string, combos []combination.Combination) string {
	for _, c := range combos {
		for _, e := range c.Fields {
			if e.ID == id && e.Description != "" {
				return e.Description
			}
		}
	}
	return id
}

// LinkURLs returns the URL of each link, for use as ExportTable artifacts.
func LinkURLs(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

// TemplateTable renders the downloadable template: the field names as header
// and one row per example, projected onto the fields. Missing keys are "".
func TemplateTable(fields schema.FieldSet, examples []map[string]string) Table {
	header := fields.Names()
	rows := make([][]string, len(examples))
	for i, ex := range examples {
		row := make([]string, len(header))
		for j, name := range header {
			row[j] = ex[name]
		}
		rows[i] = row
	}
	return Table{Header: header, Rows: rows}
}

// WriteCSV writes t as RFC 4180 CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for i, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
