package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback and unload the current event",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	a := mustOpenApp(context.Background())
	defer a.Close()

	before := a.engine.Snapshot()
	if before.Status == playback.StatusStop && before.EventNow == nil {
		fmt.Fprintln(os.Stderr, "Nothing is playing.")
		os.Exit(1)
	}

	if err := a.engine.Stop(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if before.EventNow == nil {
		fmt.Println("Stopped.")
		return nil
	}
	fmt.Printf("Stopped %q. Elapsed: %s\n", before.EventNow.Title, formatElapsed(elapsedSeconds(before)))
	return nil
}

// elapsedSeconds is how long the snapshot's event has run, in whole seconds.
func elapsedSeconds(snap playback.Snapshot) int64 {
	if snap.Timer.Elapsed == nil {
		return 0
	}
	return *snap.Timer.Elapsed / timecalc.MsPerSecond
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
