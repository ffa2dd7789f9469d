// Package table renders aligned plain-text tables for the command line.
package table

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// FormatFunc colors or decorates a cell after its width was measured.
type FormatFunc func(value string) string

// Column describes one table column.
type Column struct {
	Header     string
	BlankValue string // shown for empty cells, "-" by default
	FormatFunc FormatFunc
	MinWidth   int
	MaxWidth   int // 0 means unlimited
}

type Table struct {
	columns []Column
	rows    [][]string
	widths  []int
}

func New(cols ...Column) *Table {
	t := &Table{
		columns: cols,
		widths:  make([]int, len(cols)),
	}
	for i := range t.columns {
		if t.columns[i].BlankValue == "" {
			t.columns[i].BlankValue = "-"
		}
		t.widths[i] = max(t.columns[i].MinWidth, displayWidth(t.columns[i].Header))
	}
	return t
}

// AddRow appends a row. Missing cells are blank; extra cells are ignored.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	for i, col := range t.columns {
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		if v == "" {
			v = col.BlankValue
		}
		if col.MaxWidth > 0 {
			v = truncate(v, col.MaxWidth)
		}
		row[i] = v
		t.widths[i] = max(t.widths[i], displayWidth(v))
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int { return len(t.rows) }

// Render writes the header, a rule and every row.
func (t *Table) Render(w io.Writer) error {
	line := make([]string, len(t.columns))
	for i, col := range t.columns {
		line[i] = pad(col.Header, col.Header, t.widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(line, "  "), " ")); err != nil {
		return err
	}

	for i := range t.columns {
		line[i] = strings.Repeat("-", t.widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.Join(line, "  ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		for i, v := range row {
			shown := v
			if f := t.columns[i].FormatFunc; f != nil {
				shown = f(v)
			}
			line[i] = pad(shown, v, t.widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(line, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// pad pads shown to n columns, measuring the undecorated raw value.
func pad(shown, raw string, n int) string {
	if w := displayWidth(raw); w < n {
		return shown + strings.Repeat(" ", n-w)
	}
	return shown
}

// displayWidth counts terminal columns; East Asian wide runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	if displayWidth(s) <= n {
		return s
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		rw := displayWidth(string(r))
		if used+rw > n-1 {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	return b.String() + "~"
}
