package mcp

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string  `json:"query" jsonschema:"the search query to find relevant passages"`
	Limit      int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	Threshold  float64 `json:"threshold,omitempty" jsonschema:"minimum similarity between 0 and 1 (default 0.5)"`
	DocumentID string  `json:"document_id,omitempty" jsonschema:"restrict results to one document"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []EvidenceOutput `json:"results"`
	Count   int              `json:"count"`
}

// EvidenceOutput represents a single retrieved chunk.
type EvidenceOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question     string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	SessionToken string `json:"session_token,omitempty" jsonschema:"session token to continue an earlier conversation"`
	DocumentID   string `json:"document_id,omitempty" jsonschema:"restrict retrieval to one document"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer         string           `json:"answer"`
	SessionToken   string           `json:"session_token"`
	ConversationID string           `json:"conversation_id"`
	Evidence       []EvidenceOutput `json:"evidence"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Title   string `json:"title" jsonschema:"human-readable document title"`
	Content string `json:"content" jsonschema:"full raw text of the document"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
}

// HistoryInput is the input schema for the conversation_history tool.
type HistoryInput struct {
	SessionToken string `json:"session_token" jsonschema:"session token of the conversation"`
	Limit        int    `json:"limit,omitempty" jsonschema:"show only the most recent N messages"`
}

// HistoryOutput is the output schema for the conversation_history tool.
type HistoryOutput struct {
	Messages []MessageOutput `json:"messages"`
	Count    int             `json:"count"`
}

// MessageOutput represents one recorded conversation turn.
type MessageOutput struct {
	Role             string   `json:"role"`
	Content          string   `json:"content"`
	RelevantChunkIDs []string `json:"relevant_chunk_ids,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed documents for passages similar to a query",
	}, s.handleSearch)

	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Ask a question answered from the indexed documents, with evidence",
		}, s.handleAsk)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "conversation_history",
			Description: "Read the recorded turns of a conversation session",
		}, s.handleHistory)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_document",
			Description: "Ingest a text document into the index",
		}, s.handleIngest)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.RetrieveOptions{
		MatchCount: input.Limit,
		DocumentID: input.DocumentID,
	}
	if input.Threshold > 0 {
		opts = opts.WithThreshold(input.Threshold)
	}

	results, err := s.ports.Retrieval.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Results: evidenceOutputs(results),
		Count:   len(results),
	}, nil
}

// handleAsk handles the ask tool invocation. A fresh session token is
// minted when the caller does not supply one, so follow-up questions
// can continue the same conversation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	session := input.SessionToken
	if session == "" {
		session = newSessionToken()
	}

	opts := domain.RetrieveOptions{DocumentID: input.DocumentID}
	answer, err := s.ports.Chat.Answer(ctx, session, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:         answer.Text,
		SessionToken:   session,
		ConversationID: answer.ConversationID,
		Evidence:       evidenceOutputs(answer.Evidence),
	}, nil
}

// handleIngest handles the ingest_document tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if input.Content == "" {
		return nil, IngestOutput{}, errors.New("content is required")
	}

	docID, err := s.ports.Ingest.Ingest(ctx, driving.IngestRequest{
		Title:      input.Title,
		SourceKind: "mcp",
		Content:    input.Content,
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{DocumentID: docID}, nil
}

// handleHistory handles the conversation_history tool invocation.
func (s *Server) handleHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HistoryInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	messages, err := s.ports.Chat.History(ctx, input.SessionToken, input.Limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}

	out := HistoryOutput{
		Messages: make([]MessageOutput, len(messages)),
		Count:    len(messages),
	}
	for i := range messages {
		out.Messages[i] = MessageOutput{
			Role:             string(messages[i].Role),
			Content:          messages[i].Content,
			RelevantChunkIDs: messages[i].RelevantChunkIDs,
			CreatedAt:        messages[i].CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return nil, out, nil
}

func newSessionToken() string {
	return uuid.New().String()
}

func evidenceOutputs(evidence []domain.Evidence) []EvidenceOutput {
	out := make([]EvidenceOutput, len(evidence))
	for i := range evidence {
		out[i] = EvidenceOutput{
			ChunkID:    evidence[i].ChunkID,
			DocumentID: evidence[i].DocumentID,
			Content:    evidence[i].Content,
			Similarity: evidence[i].Similarity,
		}
	}
	return out
}
