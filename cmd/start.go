package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/showrun/internal/timecalc"
)

var loadCmd = &cobra.Command{
	Use:   "load <event-id>",
	Short: "Load an event without starting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var startRoll bool

var startCmd = &cobra.Command{
	Use:   "start [event-id]",
	Short: "Start the loaded event, or load and start the given one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startRoll, "roll", false, "Follow the schedule by the wall clock instead")
}

func runLoad(cmd *cobra.Command, args []string) error {
	a := mustOpenApp(context.Background())
	defer a.Close()

	if err := a.engine.Load(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	snap := a.engine.Snapshot()
	fmt.Printf("Loaded %q (%s)\n", snap.EventNow.Title, timecalc.FormatDuration(snap.EventNow.Duration))
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	a := mustOpenApp(context.Background())
	defer a.Close()

	var err error
	switch {
	case startRoll:
		err = a.engine.Roll()
	case len(args) == 1:
		if err = a.engine.Load(args[0]); err == nil {
			err = a.engine.Start()
		}
	default:
		err = a.engine.Start()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	snap := a.engine.Snapshot()
	if snap.EventNow == nil {
		fmt.Println("Nothing left to roll today.")
		return nil
	}
	fmt.Printf("%s %q at %s\n", titleStatus(snap.Status), snap.EventNow.Title, timecalc.FormatClock(snap.Clock))
	return nil
}
