package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "showrun",
	Short: "showrun – a live-show rundown and playback engine",
	Long: `showrun keeps the rundown of a live show, runs its timers and fires
automations at the right moments. Project data and the crash-recovery
restore point live as JSON files in ~/.showrun/.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.showrun/config.json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rundownCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}
