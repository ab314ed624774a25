package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var applyDelayCmd = &cobra.Command{
	Use:   "apply-delay <delay-id>",
	Short: "Bake a delay into the schedule and remove it",
	Args:  cobra.ExactArgs(1),
	RunE:  runApplyDelay,
}

func runApplyDelay(cmd *cobra.Command, args []string) error {
	a := mustOpenApp(context.Background())
	defer a.Close()

	res, err := a.engine.ApplyDelay(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Applied delay %s. Rundown is now at revision %d.\n", args[0], res.Metadata.Revision)
	printList(flatten(res.Rundown, res.Metadata))
	return nil
}
