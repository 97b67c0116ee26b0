// Package csvparse reads a delimited text file into a schema.Table.
//
// Options (all optional):
//
//	comma        field delimiter, default ","
//	lazy_quotes  tolerate bare quotes inside fields
//	trim_space   trim cell values, default true
//	encoding     utf-8 (default, BOM-aware), utf-16, windows-1252, iso-8859-1
package csvparse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"prefill/internal/config"
	"prefill/internal/schema"
)

// ParseIssue is a recoverable problem found on one input line. Parsing
// continues past it.
type ParseIssue struct {
	Line int
	Err  error
}

func (p ParseIssue) String() string {
	return fmt.Sprintf("line %d: %v", p.Line, p.Err)
}

// ParseDelimitedText reads r into a table keyed by trimmed header names.
//
// Short rows are padded with "" and long rows truncated; both are reported
// as issues. Columns with a blank header are dropped and reported. Malformed
// quoting anywhere ends the read with ErrCsvParse. Blank lines and rows whose
// cells are all blank are dropped.
func ParseDelimitedText(ctx context.Context, r io.Reader, opt config.Options) (schema.Table, []ParseIssue, error) {
	var tbl schema.Table

	dec, err := decoder(opt.String("encoding", "utf-8"))
	if err != nil {
		return tbl, nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1
	trim := opt.Bool("trim_space", true)

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return tbl, nil, schema.Errorf(schema.ErrStructuralCsv, "file is empty")
	}
	if err != nil {
		return tbl, nil, schema.Errorf(schema.ErrCsvParse, "read header: %v", err)
	}

	var issues []ParseIssue
	seen := make(map[string]struct{}, len(hdr))
	cols := make([]int, 0, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			issues = append(issues, ParseIssue{Line: 1, Err: fmt.Errorf("header %d is blank; column ignored", i+1)})
			continue
		}
		if _, dup := seen[h]; dup {
			return tbl, nil, schema.Errorf(schema.ErrStructuralCsv, "duplicate header %q", h)
		}
		seen[h] = struct{}{}
		tbl.Headers = append(tbl.Headers, h)
		cols = append(cols, i)
	}
	for {
		select {
		case <-ctx.Done():
			return tbl, issues, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return tbl, issues, schema.Errorf(schema.ErrCsvParse, "line %d: %v", pe.StartLine, pe.Err)
			}
			return tbl, issues, schema.Errorf(schema.ErrCsvParse, "read: %v", err)
		}
		line, _ := cr.FieldPos(0)

		if blankRecord(rec) {
			continue
		}
		switch {
		case len(rec) < len(hdr):
			issues = append(issues, ParseIssue{Line: line, Err: fmt.Errorf("row has %d cells, header has %d; padded", len(rec), len(hdr))})
		case len(rec) > len(hdr):
			issues = append(issues, ParseIssue{Line: line, Err: fmt.Errorf("row has %d cells, header has %d; extra cells ignored", len(rec), len(hdr))})
		}

		row := make(schema.Row, len(tbl.Headers))
		for j, h := range tbl.Headers {
			v := ""
			if i := cols[j]; i < len(rec) {
				v = rec[i]
			}
			if trim {
				v = strings.TrimSpace(v)
			}
			row[h] = v
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, issues, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// decoder returns the byte transform for the named input encoding. The UTF
// variants honour a leading byte order mark and strip it.
func decoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, schema.Errorf(schema.ErrCsvParse, "unsupported encoding %q", name)
	}
}
