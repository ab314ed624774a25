package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/rundown"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

var rundownCmd = &cobra.Command{
	Use:   "rundown",
	Short: "Inspect and edit the rundown",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List rundown entries with their computed times",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rundownCmd.AddCommand(listCmd)
	rundownCmd.AddCommand(exportCmd)
	rundownCmd.AddCommand(reportCmd)
	rundownCmd.AddCommand(applyDelayCmd)
	rundownCmd.AddCommand(importCalendarCmd)
}

// row is one entry of the generated rundown, flattened for printing.
type row struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Group     string `json:"group,omitempty"`
	Cue       string `json:"cue,omitempty"`
	Title     string `json:"title"`
	Start     int64  `json:"timeStart"`
	End       int64  `json:"timeEnd"`
	Duration  int64  `json:"duration"`
	Delay     int64  `json:"delay"`
	DayOffset int    `json:"dayOffset"`
	Skip      bool   `json:"skip"`
	Note      string `json:"note,omitempty"`
}

// loadRows generates the stored rundown and flattens it in display order.
func loadRows() ([]row, model.Metadata) {
	_, project, err := loadProject()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	rd, meta, err := rundown.Generate(project.Rundown, project.CustomFields, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return flatten(rd, meta), meta
}

func flatten(rd model.Rundown, meta model.Metadata) []row {
	rows := make([]row, 0, len(meta.FlatOrder))
	for _, id := range meta.FlatOrder {
		r := row{ID: id}
		switch e := rd.Entries[id].(type) {
		case *model.Event:
			r.Type, r.Group, r.Cue, r.Title, r.Note = "event", e.Parent, e.Cue, e.Title, e.Note
			r.Start, r.End, r.Duration = e.TimeStart, e.TimeEnd, e.Duration
			r.Delay, r.DayOffset, r.Skip = e.Delay, e.DayOffset, e.Skip
		case *model.Delay:
			r.Type, r.Group, r.Duration = "delay", e.Parent, e.Duration
		case *model.Group:
			r.Type, r.Title, r.Note = "group", e.Title, e.Note
			r.Start, r.End, r.Duration = e.TimeStart, e.TimeEnd, e.Duration
		case *model.Milestone:
			r.Type, r.Group, r.Cue, r.Title, r.Note = "milestone", e.Parent, e.Cue, e.Title, e.Note
		default:
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	rows, meta := loadRows()
	printList(rows)
	if len(rows) > 0 {
		fmt.Printf("\n%d events, %s–%s, %s total\n", len(meta.PlayableOrder),
			timecalc.FormatClock(meta.FirstStart), timecalc.FormatClock(meta.LastEnd),
			timecalc.FormatDuration(meta.TotalDuration))
	}
	return nil
}

// printList prints rows, indenting group members.
func printList(rows []row) {
	if len(rows) == 0 {
		fmt.Println("No entries found.")
		return
	}

	for _, r := range rows {
		indent := ""
		if r.Group != "" {
			indent = "  "
		}
		switch r.Type {
		case "group":
			fmt.Printf("[%s]  %s–%s  (%s)\n", r.Title,
				timecalc.FormatClock(r.Start), timecalc.FormatClock(r.End), timecalc.FormatDuration(r.Duration))
		case "delay":
			fmt.Printf("%s  delay %s\n", indent, signedDuration(r.Duration))
		case "milestone":
			fmt.Printf("%s  ◆ %s\n", indent, r.Title)
		default:
			extra := ""
			if r.Delay != 0 {
				extra += " delayed " + signedDuration(r.Delay)
			}
			if r.DayOffset > 0 {
				extra += fmt.Sprintf(" +%dd", r.DayOffset)
			}
			if r.Skip {
				extra += " skipped"
			}
			fmt.Printf("%s%s–%s  %-4s %s (%s)%s\n", indent,
				timecalc.FormatClock(r.Start), timecalc.FormatClock(r.End), r.Cue, r.Title,
				timecalc.FormatDuration(r.Duration), extra)
		}
	}
}

func signedDuration(ms int64) string {
	if ms > 0 {
		return "+" + timecalc.FormatDuration(ms)
	}
	return timecalc.FormatDuration(ms)
}
