package output

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ppiankov/concordia/internal/model"
)

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

// MatchedTable lists files paired with their records
func MatchedTable(results []model.MatchResult) string {
	tw := newTable(table.Row{"#", "File", "Key", "Record"})
	for i, r := range results {
		tw.AppendRow(table.Row{i + 1, r.File.DisplayName, r.Key, r.RecordID})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return tw.Render()
}

// UnmatchedTable lists files that found no record, with the reason
func UnmatchedTable(results []model.MatchResult) string {
	tw := newTable(table.Row{"#", "File", "Key", "Reason"})
	for i, r := range results {
		key := r.Key
		if key == "" {
			key = "-"
		}
		tw.AppendRow(table.Row{i + 1, r.File.DisplayName, key, string(r.Reason)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return tw.Render()
}

// CollisionTable lists keys shared by several records
func CollisionTable(collisions []model.Collision) string {
	tw := newTable(table.Row{"Key", "Records", "Kept"})
	for _, c := range collisions {
		kept := c.Kept
		if kept == "" {
			kept = "(none)"
		}
		tw.AppendRow(table.Row{c.Key, fmt.Sprint(c.RecordIDs), kept})
	}
	return tw.Render()
}

// RecordsTable lists records with the key each one matches on
func RecordsTable(records []model.CanonicalRecord, key func(string) string) string {
	tw := newTable(table.Row{"ID", "Title", "Key"})
	for _, r := range records {
		tw.AppendRow(table.Row{r.ID, r.Title, key(r.Title)})
	}
	tw.AppendFooter(table.Row{"", "Total", strconv.Itoa(len(records))})
	return tw.Render()
}
