package schema

// Row is one parsed record keyed by header.
type Row map[string]string

// Table is the parsed source: headers in the order the parser reported them
// and rows in file order.
type Table struct {
	Headers []string
	Rows    []Row
}

// Column returns the cells of one header across all rows. Missing cells are "".
func (t Table) Column(header string) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[header]
	}
	return out
}

// HasHeader reports whether header is one of the table headers.
func (t Table) HasHeader(header string) bool {
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}
