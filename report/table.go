package report

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteTable renders a summary followed by the per-source report as plain
// text tables.
func WriteTable(w io.Writer, s Summary, entries []DeanonymizationEntry) {
	summary := tablewriter.NewWriter(w)
	summary.SetAutoWrapText(false)
	summary.AppendBulk([][]string{
		{"Sources", strconv.Itoa(s.Sources)},
		{"Messages", strconv.Itoa(s.Messages)},
		{"Destinations", strconv.Itoa(s.Destinations)},
		{"Window (ms)", strconv.FormatInt(s.MinWindowMs, 10) + "-" + strconv.FormatInt(s.MaxWindowMs, 10)},
		{"Deanonymized", strconv.Itoa(s.Deanonymized)},
		{"Mean final set size", strconv.FormatFloat(s.MeanFinalSetSize, 'f', 2, 64)},
		{"Incorrectly pruned", strconv.Itoa(s.IncorrectlyPruned)},
	})
	summary.Render()

	if len(entries) == 0 {
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		at := "-"
		if e.DeanonymizedAt != nil {
			at = strconv.Itoa(*e.DeanonymizedAt)
		}
		rows = append(rows, []string{
			e.Source.String(),
			e.Destination.String(),
			strconv.Itoa(e.Messages),
			strconv.Itoa(e.RemainingAnonymitySet),
			at,
			strconv.FormatBool(e.Correct),
		})
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Source", "Destination", "Messages", "Set size", "Deanonymized at", "Correct"})
	table.SetBorders(tablewriter.Border{Left: true, Right: true, Top: false, Bottom: false})
	table.AppendBulk(rows)
	table.Render()
}
