package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes aligned columns with a styled header.
type Table struct {
	w      *tabwriter.Writer
	header []string
	rows   [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(out io.Writer, header ...string) *Table {
	return &Table{
		w:      tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
		header: header,
	}
}

// Row appends a row. Missing cells are left blank.
func (t *Table) Row(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows added so far.
func (t *Table) Len() int {
	return len(t.rows)
}

// Flush writes the header, a rule and every row.
func (t *Table) Flush() error {
	styled := make([]string, len(t.header))
	rule := make([]string, len(t.header))
	for i, h := range t.header {
		styled[i] = BoldStyle.Render(h)
		rule[i] = strings.Repeat("─", len([]rune(h)))
	}

	if _, err := fmt.Fprintln(t.w, strings.Join(styled, "\t")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(t.w, strings.Join(rule, "\t")); err != nil {
		return err
	}
	for _, row := range t.rows {
		cells := make([]string, len(t.header))
		copy(cells, row)
		if _, err := fmt.Fprintln(t.w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return t.w.Flush()
}
