package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableLayout describes the columns of a rendered table. Columns without an
// alignment are left aligned.
type tableLayout struct {
	headers []string
	aligns  []columnAlignment
}

var stageLayout = tableLayout{
	headers: []string{"Stage", "Unset", "In Progress", "Done", "Empty", "Sub-items"},
	aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
}

var runLayout = tableLayout{
	headers: []string{"Stage", "Claimed", "Done", "Empty", "Failed", "Finalized", "Elapsed"},
	aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
}

var recordLayout = tableLayout{
	headers: []string{"Field", "Status", "Items"},
}

// render draws rows under the layout's headers, padding short rows. A
// non-nil footer is drawn as a totals row.
func (l tableLayout) render(rows [][]string, footer []string) string {
	if len(l.headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(l.row(l.headers))
	for _, r := range rows {
		tw.AppendRow(l.row(r))
	}
	if footer != nil {
		tw.AppendFooter(l.row(footer))
	}

	configs := make([]table.ColumnConfig, len(l.headers))
	for i := range l.headers {
		align := text.AlignLeft
		if i < len(l.aligns) && l.aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignFooter: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func (l tableLayout) row(values []string) table.Row {
	r := make(table.Row, len(l.headers))
	for i := range r {
		if i < len(values) {
			r[i] = values[i]
		} else {
			r[i] = ""
		}
	}
	return r
}
