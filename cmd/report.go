package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/timecalc"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show planned time per group",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
}

// groupTotal is the planned running time of one group.
type groupTotal struct {
	Title    string
	Events   int
	Duration int64
	Delay    int64
}

const ungrouped = "(no group)"

// totalsByGroup sums non-skipped events per group in rundown order.
// Events outside any group are collected under ungrouped.
func totalsByGroup(rows []row) []groupTotal {
	titles := map[string]string{}
	index := map[string]int{}
	var out []groupTotal
	for _, r := range rows {
		if r.Type == "group" {
			titles[r.ID] = r.Title
			continue
		}
		if r.Type != "event" || r.Skip {
			continue
		}
		key := r.Group
		i, seen := index[key]
		if !seen {
			title := ungrouped
			if key != "" {
				title = titles[key]
				if title == "" {
					title = key
				}
			}
			i = len(out)
			index[key] = i
			out = append(out, groupTotal{Title: title})
		}
		out[i].Events++
		out[i].Duration += r.Duration
		out[i].Delay += r.Delay
	}
	return out
}

func runReport(cmd *cobra.Command, args []string) error {
	rows, meta := loadRows()
	totals := totalsByGroup(rows)

	var grandTotal int64
	for _, g := range totals {
		grandTotal += g.Duration
	}

	switch reportFormat {
	case "csv":
		fmt.Println("group,events,duration_minutes")
		for _, g := range totals {
			fmt.Printf("%s,%d,%d\n", csvEscape(g.Title), g.Events, g.Duration/60000)
		}
	case "json":
		fmt.Println("{")
		fmt.Println("  \"groups\": [")
		for i, g := range totals {
			comma := ","
			if i == len(totals)-1 {
				comma = ""
			}
			fmt.Printf("    {\"group\": %q, \"events\": %d, \"duration_minutes\": %d}%s\n",
				g.Title, g.Events, g.Duration/60000, comma)
		}
		fmt.Println("  ],")
		fmt.Printf("  \"total_minutes\": %d,\n", grandTotal/60000)
		fmt.Printf("  \"total_days\": %d\n", meta.TotalDays)
		fmt.Println("}")
	default: // md
		fmt.Printf("Rundown %s–%s\n", timecalc.FormatClock(meta.FirstStart), timecalc.FormatClock(meta.LastEnd))
		fmt.Println("--------------------------------")
		for _, g := range totals {
			fmt.Printf("%-20s%s\n", g.Title, timecalc.FormatDuration(g.Duration))
		}
		fmt.Println("--------------------------------")
		fmt.Printf("%-20s%s\n", "Total", timecalc.FormatDuration(grandTotal))
		if meta.TotalDelay != 0 {
			fmt.Printf("%-20s%s\n", "Delay", signedDuration(meta.TotalDelay))
		}
	}

	return nil
}
