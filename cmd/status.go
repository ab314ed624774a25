package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current playback state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := mustOpenApp(context.Background())
	defer a.Close()

	snap := a.engine.Snapshot()
	if snap.EventNow == nil {
		_, meta := a.engine.Rundown()
		fmt.Println("Nothing loaded.")
		fmt.Printf("Rundown: %d events, %s planned.\n", len(meta.PlayableOrder), timecalc.FormatDuration(meta.TotalDuration))
		return nil
	}
	printSnapshot(snap)
	return nil
}

// printSnapshot writes a human readable view of the playback state.
func printSnapshot(snap playback.Snapshot) {
	ev := snap.EventNow
	fmt.Printf("%s:\n", titleStatus(snap.Status))
	if ev.Cue != "" {
		fmt.Printf("  Cue: %s\n", ev.Cue)
	}
	fmt.Printf("  Event: %s\n", ev.Title)
	fmt.Printf("  Scheduled: %s–%s\n", timecalc.FormatClock(ev.TimeStart), timecalc.FormatClock(ev.TimeEnd))
	if snap.Timer.Current != nil {
		fmt.Printf("  Timer: %s (%s)\n", timecalc.FormatDurationHHMMSS(*snap.Timer.Current), snap.Timer.Phase)
	}
	if snap.Timer.Secondary != nil {
		fmt.Printf("  Starts in: %s\n", timecalc.FormatDurationHHMMSS(*snap.Timer.Secondary))
	}
	if snap.Offset != nil {
		fmt.Printf("  Offset: %s\n", timecalc.FormatDurationHHMMSS(*snap.Offset))
	}
	if snap.EventNext != nil {
		fmt.Printf("  Next: %s at %s\n", snap.EventNext.Title, timecalc.FormatClock(snap.EventNext.TimeStart))
	}
}

// titleStatus turns "play" into "Playing" and so on.
func titleStatus(s playback.Status) string {
	switch s {
	case playback.StatusPlay:
		return "Playing"
	case playback.StatusPause:
		return "Paused"
	case playback.StatusRoll:
		return "Rolling"
	case playback.StatusStop:
		return "Loaded"
	}
	return strings.ToUpper(string(s))
}
