package output

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Table struct {
	out   io.Writer
	tw    table.Writer
	rows  int
	quiet bool
}

func NewTable(out io.Writer, headers []string, quiet bool) *Table {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	return &Table{out: out, tw: tw, quiet: quiet}
}

func (t *Table) Append(cells ...string) {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	t.tw.AppendRow(row)
	t.rows++
}

func (t *Table) Len() int {
	return t.rows
}

func (t *Table) Render() error {
	if t.quiet {
		return nil
	}
	_, err := fmt.Fprintln(t.out, t.tw.Render())
	return err
}

// Table builds a table that writes to the printer's output and stays quiet
// in JSON mode.
func (p *Printer) Table(headers ...string) *Table {
	return NewTable(p.out, headers, p.quiet || p.json)
}
