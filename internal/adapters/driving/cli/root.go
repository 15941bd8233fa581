// Package cli wires the command-line surface: ingesting documents,
// asking questions, browsing conversation history and serving MCP.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Package-level services injected by the composition root before
// Execute runs. Commands guard against nil so partial wiring fails
// with a clear message instead of a panic.
var (
	ingestService       driving.IngestService
	retrievalService    driving.RetrievalService
	chatService         driving.ChatService
	conversationService driving.ConversationService
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sercha",
	Short: "Local retrieval-augmented question answering",
	Long: `Sercha ingests documents into a local vector index and answers
questions grounded on the most relevant passages, keeping a ledger of
every conversation turn and the evidence behind each answer.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

// Services aggregates the driving ports the CLI depends on.
type Services struct {
	Ingest       driving.IngestService
	Retrieval    driving.RetrievalService
	Chat         driving.ChatService
	Conversation driving.ConversationService
}

// SetServices injects the service implementations used by all commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	retrievalService = s.Retrieval
	chatService = s.Chat
	conversationService = s.Conversation
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	version = v
}

// Configuration-supplied retrieval defaults, applied when the
// corresponding flags are not given. A negative threshold means the
// service default.
var (
	defaultMatchCount int
	defaultThreshold  = -1.0
)

// SetRetrievalDefaults sets the retrieval parameters used when flags
// are absent.
func SetRetrievalDefaults(matchCount int, threshold float64) {
	defaultMatchCount = matchCount
	defaultThreshold = threshold
}

// retrieveOptions merges flag values with the configured defaults.
func retrieveOptions(matchCount int, threshold float64, documentID string) domain.RetrieveOptions {
	if matchCount <= 0 {
		matchCount = defaultMatchCount
	}
	opts := domain.RetrieveOptions{
		MatchCount: matchCount,
		DocumentID: documentID,
	}
	switch {
	case threshold >= 0:
		opts = opts.WithThreshold(threshold)
	case defaultThreshold >= 0:
		opts = opts.WithThreshold(defaultThreshold)
	}
	return opts
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
