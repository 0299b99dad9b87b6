package domain

import (
	"time"
)

// Table is the final wide-format forecast table: one row per local timestamp,
// one cell per {variable}_{statistic} column. It is the hand-off shape for
// exporters; formatting and file naming are the exporter's concern.
type Table struct {
	Models      []string
	GeneratedAt time.Time
	Columns     []string
	Times       []time.Time
	Rows        [][]*float64
}

// BuildTable assembles the consolidated forecast into a wide table with the
// timestamp axis converted to the given timezone. Column order is
// deterministic: the configured variable order with each variable's fixed
// statistic order; variables absent from the consolidated data are skipped.
func (c Consolidated) BuildTable(loc *time.Location, variableOrder []string) Table {
	if loc == nil {
		loc = time.UTC
	}

	var columns []string
	for _, variable := range variableOrder {
		for _, column := range StatColumns(variable) {
			if _, ok := c.Columns[column]; ok {
				columns = append(columns, column)
			}
		}
	}

	times := make([]time.Time, len(c.Times))
	rows := make([][]*float64, len(c.Times))
	for i, t := range c.Times {
		times[i] = t.In(loc)
		row := make([]*float64, len(columns))
		for j, column := range columns {
			row[j] = c.Columns[column][i]
		}
		rows[i] = row
	}

	return Table{
		Models:      c.Models,
		GeneratedAt: clock.Now().UTC(),
		Columns:     columns,
		Times:       times,
		Rows:        rows,
	}
}

// SummaryTable builds the single-model wide table for a summary, used for
// per-model exports. Merging one model is the identity, so this is the
// model's statistics unchanged on its own time axis.
func (s Summary) SummaryTable(loc *time.Location, variableOrder []string) Table {
	consolidated, err := Merge([]Summary{s})
	if err != nil {
		return Table{}
	}
	return consolidated.BuildTable(loc, variableOrder)
}
