package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/timecalc"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the computed rundown to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md")
}

func runExport(cmd *cobra.Command, args []string) error {
	rows, _ := loadRows()

	switch exportFormat {
	case "json":
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error encoding JSON:", err)
			os.Exit(2)
		}
		fmt.Println(string(data))
	case "md":
		printMarkdown(rows)
	default: // csv
		printCSV(rows)
	}

	return nil
}

func printCSV(rows []row) {
	fmt.Println("id,type,group,cue,title,start,end,duration_seconds,delay_seconds,day_offset,skip,note")
	for _, r := range rows {
		fmt.Printf("%s,%s,%s,%s,%s,%s,%s,%d,%d,%d,%t,%s\n",
			csvEscape(r.ID),
			r.Type,
			csvEscape(r.Group),
			csvEscape(r.Cue),
			csvEscape(r.Title),
			timeCell(r, r.Start),
			timeCell(r, r.End),
			r.Duration/timecalc.MsPerSecond,
			r.Delay/timecalc.MsPerSecond,
			r.DayOffset,
			r.Skip,
			csvEscape(r.Note),
		)
	}
}

func printMarkdown(rows []row) {
	fmt.Println("| Cue | Title | Start | End | Duration | Delay |")
	fmt.Println("|-----|-------|-------|-----|----------|-------|")
	for _, r := range rows {
		title := mdEscape(r.Title)
		switch r.Type {
		case "group":
			title = "**" + title + "**"
		case "delay":
			title = "_delay_"
		case "milestone":
			title = "◆ " + title
		}
		delay := ""
		if r.Delay != 0 {
			delay = signedDuration(r.Delay)
		}
		fmt.Printf("| %s | %s | %s | %s | %s | %s |\n", mdEscape(r.Cue), title,
			timeCell(r, r.Start), timeCell(r, r.End), timecalc.FormatDuration(r.Duration), delay)
	}
}

// timeCell renders a time of day, or nothing for entries without times.
func timeCell(r row, ms int64) string {
	if r.Type != "event" && r.Type != "group" {
		return ""
	}
	return timecalc.FormatClock(ms)
}

func mdEscape(s string) string {
	out := ""
	for _, c := range s {
		if c == '|' {
			out += `\`
		}
		out += string(c)
	}
	return out
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	needsQuote := false
	for _, c := range s {
		if c == ',' || c == '"' || c == '\n' || c == '\r' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	// Escape internal double quotes by doubling them.
	escaped := ""
	for _, c := range s {
		if c == '"' {
			escaped += "\""
		}
		escaped += string(c)
	}
	return `"` + escaped + `"`
}
