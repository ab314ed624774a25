package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/calendar"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

var (
	importDate   string
	importDryRun bool
)

var importCalendarCmd = &cobra.Command{
	Use:   "import-calendar",
	Short: "Import a day of Microsoft 365 calendar events into the rundown",
	Long: `Fetches the calendar events of one day via Microsoft Graph and adds them
to the rundown. Cancelled, all-day and free events are ignored; tentative
ones are imported as skipped. Re-running updates entries imported earlier.

Sign-in uses the device code flow; the token is kept in auth/ inside the
data directory.`,
	Args: cobra.NoArgs,
	RunE: runImportCalendar,
}

func init() {
	importCalendarCmd.Flags().StringVar(&importDate, "date", "", "Day to import (YYYY-MM-DD, default today)")
	importCalendarCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without changing the rundown")
}

func runImportCalendar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := mustOpenApp(ctx)
	defer a.Close()

	day := time.Now().In(a.loc)
	if importDate != "" {
		d, err := time.ParseInLocation(time.DateOnly, importDate, a.loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --date %q: expected YYYY-MM-DD\n", importDate)
			os.Exit(1)
		}
		day = d
	}
	from, to := timecalc.StartOfDay(day), timecalc.Midnight(day)

	tokenPath := calendar.TokenPath(a.base)
	tok, oc, err := calendar.Authenticate(ctx, tokenPath, a.cfg.Calendar.TenantID, a.cfg.Calendar.ClientID, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	client := calendar.NewClient(ctx, tok, oc, tokenPath)

	events, err := client.GetCalendarView(ctx, from, to, a.cfg.Timezone)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if importDryRun {
		fmt.Println("Dry run: no changes will be made.")
	}
	fmt.Printf("Fetched %d calendar event(s) for %s\n", len(events), from.Format(time.DateOnly))

	rd, _ := a.engine.Rundown()
	result := calendar.SyncEvents(events, rd, a.engine, calendar.SyncOptions{
		DryRun:   importDryRun,
		Location: a.loc,
		Day:      from,
		Out:      os.Stdout,
	})

	fmt.Printf("\nSummary: %d imported, %d updated, %d skipped, %d error(s)\n",
		result.Imported, result.Updated, result.Skipped, result.Errors)
	if result.Errors > 0 {
		os.Exit(1)
	}
	return nil
}
