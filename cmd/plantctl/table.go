package main

import (
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/anime-shed/plant-inspector-go/internal/recognition"
)

// bestMarker flags the row that matched the expected label.
const bestMarker = "*"

var bestColors = text.Colors{text.FgGreen, text.Bold}

// candidateTable renders ranked candidates. The best match, if any, is marked
// in the rank column and painted green when color is set.
func candidateTable(result *recognition.Result, withMatch, color bool) string {
	best := bestIndex(result)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"#", "Label", "Score"}
	if withMatch {
		header = append(header, "Match")
	}
	tw.AppendHeader(header)

	for i, item := range result.Items {
		rank := strconv.Itoa(i + 1)
		if i == best {
			rank = bestMarker + rank
		}
		row := table.Row{rank, item.Label, item.FormattedScore}
		if withMatch {
			match := "-"
			if item.MatchScore != nil {
				match = recognition.FormatScore(*item.MatchScore)
			}
			row = append(row, match)
		}
		tw.AppendRow(row)
	}

	if color && best >= 0 {
		marked := bestMarker + strconv.Itoa(best+1)
		tw.SetRowPainter(table.RowPainter(func(row table.Row) text.Colors {
			if rank, ok := row[0].(string); ok && rank == marked {
				return bestColors
			}
			return nil
		}))
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// bestIndex locates result.BestMatch among the candidates, or -1.
func bestIndex(result *recognition.Result) int {
	if result.BestMatch == nil {
		return -1
	}
	for i, item := range result.Items {
		if item.Label == result.BestMatch.Label {
			return i
		}
	}
	return -1
}

// fieldTable renders name/value pairs in the given order.
func fieldTable(rows [][2]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r[0], r[1]})
	}
	return tw.Render()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
