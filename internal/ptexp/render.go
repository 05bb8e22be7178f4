// Package ptexp renders expression sets to the .ptExp table format and writes
// them to the output directory.
//
// Each expression is a three-column table: a header row, a dashed underline,
// one row per field, one row per element property, then a rule of '='
// characters as wide as the widest row in the document.
package ptexp

import (
	"bytes"
	"strings"

	"passthru_parser/internal/passthru"
)

// Extension is the file extension of serialized expression sets.
const Extension = ".ptExp"

// Column headers.
const (
	HeaderName  = "Field Name"
	HeaderValue = "Current Value"
	HeaderState = "Validation State"
)

// StateNA is the state column value for element property rows.
const StateNA = "N/A"

const sep = " | "

// Row is one line of an expression table.
type Row struct {
	Name  string
	Value string
	State string
}

// Rows flattens an expression into table rows: fields first, then each
// element's properties prefixed with the element label.
func Rows(e *passthru.Expression) []Row {
	rows := make([]Row, 0, len(e.Fields))
	for _, f := range e.Fields {
		rows = append(rows, Row{Name: f.Name, Value: f.Value, State: f.State.String()})
	}
	for _, el := range e.Elements {
		for _, p := range el.Properties {
			rows = append(rows, Row{Name: el.Label + " " + p.Name, Value: p.Value, State: StateNA})
		}
	}
	return rows
}

type widths struct{ name, value, state int }

func (w widths) total() int { return w.name + w.value + w.state + 2*len(sep) }

func (w *widths) fit(r Row) {
	w.name = max(w.name, len(r.Name))
	w.value = max(w.value, len(r.Value))
	w.state = max(w.state, len(r.State))
}

// Render produces the .ptExp document for exprs. Column widths are shared by
// every table in the document so the output is stable for a given input.
func Render(exprs []*passthru.Expression) []byte {
	header := Row{Name: HeaderName, Value: HeaderValue, State: HeaderState}

	w := widths{}
	w.fit(header)
	tables := make([][]Row, len(exprs))
	for i, e := range exprs {
		tables[i] = Rows(e)
		for _, r := range tables[i] {
			w.fit(r)
		}
	}

	rule := strings.Repeat("=", w.total())
	underline := strings.Repeat("-", w.name) + "-+-" + strings.Repeat("-", w.value) + "-+-" + strings.Repeat("-", w.state)

	var buf bytes.Buffer
	for _, rows := range tables {
		writeRow(&buf, w, header)
		buf.WriteString(underline)
		buf.WriteByte('\n')
		for _, r := range rows {
			writeRow(&buf, w, r)
		}
		buf.WriteString(rule)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, w widths, r Row) {
	line := pad(r.Name, w.name) + sep + pad(r.Value, w.value) + sep + r.State
	buf.WriteString(strings.TrimRight(line, " "))
	buf.WriteByte('\n')
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
