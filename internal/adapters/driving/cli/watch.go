package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-core/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and keep the index in sync",
	Long: `Watches a directory tree for changes and mirrors them into the index:
new and modified files are re-ingested, removed files are deleted.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	w, err := watcher.New(ingestService, args[0])
	if err != nil {
		return fmt.Errorf("watch %s: %w", args[0], err)
	}
	defer w.Close()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(cmd.Context())
}
