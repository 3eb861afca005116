package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Table - таблица без рамок с левым выравниванием
type Table struct {
	table  *tablewriter.Table
	header []string
	rows   [][]string
	quiet  bool
}

// NewTable создает таблицу, пишущую в w
func NewTable(w io.Writer, headers []string, quiet bool) *Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	return &Table{table: table, header: headers, quiet: quiet}
}

// AddRow добавляет строку
func (t *Table) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Len - число строк
func (t *Table) Len() int {
	return len(t.rows)
}

// Render выводит таблицу
func (t *Table) Render() error {
	if t.quiet {
		return nil
	}
	t.table.Header(t.header)
	if err := t.table.Bulk(t.rows); err != nil {
		return err
	}
	return t.table.Render()
}
