package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

var (
	askSession    string
	askDocument   string
	askMatchCount int
	askThreshold  float64
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded on the indexed documents",
	Long: `Retrieves the passages most relevant to the question, generates an
answer grounded on them and records the exchange in the conversation
ledger. Use --session to continue an earlier conversation; without it
each invocation starts a fresh one.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session token to continue a conversation")
	askCmd.Flags().StringVarP(&askDocument, "document", "d", "", "restrict retrieval to one document id")
	askCmd.Flags().IntVarP(&askMatchCount, "limit", "n", 0, "maximum number of evidence chunks")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", -1, "minimum similarity for evidence (0..1)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	session := askSession
	if session == "" {
		session = uuid.New().String()
	}

	opts := retrieveOptions(askMatchCount, askThreshold, askDocument)
	answer, err := chatService.Answer(cmd.Context(), session, args[0], opts)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, session, answer)
	}
	return outputAnswerText(cmd, session, answer)
}

func outputAnswerJSON(cmd *cobra.Command, session string, answer *domain.Answer) error {
	payload := struct {
		SessionToken   string            `json:"session_token"`
		ConversationID string            `json:"conversation_id"`
		Answer         string            `json:"answer"`
		Evidence       []evidencePayload `json:"evidence"`
	}{
		SessionToken:   session,
		ConversationID: answer.ConversationID,
		Answer:         answer.Text,
		Evidence:       evidencePayloads(answer.Evidence),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, session string, answer *domain.Answer) error {
	cmd.Println(answer.Text)

	if len(answer.Evidence) > 0 {
		cmd.Println()
		cmd.Println("Evidence:")
		for i := range answer.Evidence {
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, answer.Evidence[i].ChunkID, answer.Evidence[i].Similarity)
		}
	}

	if askSession == "" {
		cmd.Printf("\nSession: %s (pass --session to continue)\n", session)
	}
	return nil
}

type evidencePayload struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

func evidencePayloads(evidence []domain.Evidence) []evidencePayload {
	out := make([]evidencePayload, len(evidence))
	for i := range evidence {
		out[i] = evidencePayload{
			ChunkID:    evidence[i].ChunkID,
			DocumentID: evidence[i].DocumentID,
			Content:    evidence[i].Content,
			Similarity: evidence[i].Similarity,
		}
	}
	return out
}
