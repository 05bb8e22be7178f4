package ptexp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is returned when a document does not follow the table layout.
var ErrMalformed = errors.New("malformed ptExp document")

// Table is one expression's rows read back from a document.
type Table struct {
	Rows []Row
}

// Get returns the named row.
func (t Table) Get(name string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}

type columns struct{ nameEnd, valueStart, valueEnd, stateStart int }

func headerColumns(line string) (columns, bool) {
	v := strings.Index(line, sep+HeaderValue)
	s := strings.Index(line, sep+HeaderState)
	if !strings.HasPrefix(line, HeaderName) || v < 0 || s < v {
		return columns{}, false
	}
	return columns{nameEnd: v, valueStart: v + len(sep), valueEnd: s, stateStart: s + len(sep)}, true
}

func (c columns) split(line string) Row {
	cut := func(from, to int) string {
		if from >= len(line) {
			return ""
		}
		if to > len(line) || to < 0 {
			to = len(line)
		}
		return strings.TrimRight(line[from:to], " ")
	}
	return Row{
		Name:  cut(0, c.nameEnd),
		Value: cut(c.valueStart, c.valueEnd),
		State: cut(c.stateStart, -1),
	}
}

func isRule(line string) bool {
	return line != "" && strings.Trim(line, "=") == ""
}

// Parse reads a .ptExp document back into one Table per expression.
func Parse(r io.Reader) ([]Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		tables []Table
		cur    *Table
		cols   columns
		lineNo int
		expect int // 0: header, 1: underline, 2: rows
	)

	for sc.Scan() {
		line := sc.Text()
		lineNo++

		switch {
		case isRule(line):
			if cur == nil {
				return nil, fmt.Errorf("line %d: rule without table: %w", lineNo, ErrMalformed)
			}
			tables = append(tables, *cur)
			cur, expect = nil, 0

		case expect == 0:
			if line == "" {
				continue
			}
			c, ok := headerColumns(line)
			if !ok {
				return nil, fmt.Errorf("line %d: expected header: %w", lineNo, ErrMalformed)
			}
			cols, cur, expect = c, &Table{}, 1

		case expect == 1:
			if strings.Trim(line, "-+ ") != "" {
				return nil, fmt.Errorf("line %d: expected header underline: %w", lineNo, ErrMalformed)
			}
			expect = 2

		default:
			cur.Rows = append(cur.Rows, cols.split(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ptExp: %w", err)
	}

	// A final table without a closing rule is still a table.
	if cur != nil {
		tables = append(tables, *cur)
	}
	return tables, nil
}
