package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchLimit     int
	searchDocument  string
	searchThreshold float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs semantic search across all indexed chunks and prints the
closest matches with their similarity scores, without generating an
answer or touching any conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchDocument, "document", "d", "", "restrict results to one document id")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", -1, "minimum similarity (0..1)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	opts := retrieveOptions(searchLimit, searchThreshold, searchDocument)
	results, err := retrievalService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(evidencePayloads(results), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, results[i].ChunkID, results[i].Similarity)
		cmd.Printf("      Document: %s\n", results[i].DocumentID)
		cmd.Printf("      %s\n", snippet(results[i].Content, 160))
		cmd.Println()
	}
	return nil
}

// snippet truncates text to limit runes for single-line display.
func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
