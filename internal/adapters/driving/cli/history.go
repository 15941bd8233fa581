package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session]",
	Short: "Show a conversation's recorded turns",
	Long: `Prints the messages of a session's conversation, oldest first.
Assistant turns list the chunk ids their answer was grounded on.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the most recent N messages")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	messages, err := chatService.History(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if len(messages) == 0 {
		cmd.Println("No messages recorded.")
		return nil
	}

	for i := range messages {
		msg := &messages[i]
		cmd.Printf("[%s] %s\n", msg.CreatedAt.Format("2006-01-02 15:04:05"), msg.Role)
		cmd.Printf("  %s\n", msg.Content)
		if len(msg.RelevantChunkIDs) > 0 {
			cmd.Printf("  Evidence: %v\n", msg.RelevantChunkIDs)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d messages\n", len(messages))
	return nil
}
