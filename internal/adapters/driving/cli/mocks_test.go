package cli

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// stubIngestService records calls and serves canned documents.
type stubIngestService struct {
	docs     []domain.Document
	content  string
	err      error
	ingested []driving.IngestRequest
	deleted  []string
}

func (s *stubIngestService) Ingest(_ context.Context, req driving.IngestRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.ingested = append(s.ingested, req)
	return req.DocumentID, nil
}

func (s *stubIngestService) Delete(_ context.Context, documentID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, documentID)
	return nil
}

func (s *stubIngestService) List(_ context.Context) ([]domain.Document, error) {
	return s.docs, s.err
}

func (s *stubIngestService) Content(_ context.Context, _ string) (string, error) {
	return s.content, s.err
}

// stubRetrievalService returns canned evidence.
type stubRetrievalService struct {
	results []domain.Evidence
	err     error

	gotQuery string
	gotOpts  domain.RetrieveOptions
}

func (s *stubRetrievalService) Retrieve(
	_ context.Context, _ []float32, _ domain.RetrieveOptions,
) ([]domain.Evidence, error) {
	return s.results, s.err
}

func (s *stubRetrievalService) Search(
	_ context.Context, query string, opts domain.RetrieveOptions,
) ([]domain.Evidence, error) {
	s.gotQuery = query
	s.gotOpts = opts
	return s.results, s.err
}

// stubChatService returns a canned answer and history.
type stubChatService struct {
	answer   *domain.Answer
	messages []domain.Message
	err      error

	gotSession  string
	gotQuestion string
	gotOpts     domain.RetrieveOptions
}

func (s *stubChatService) Answer(
	_ context.Context, sessionToken, question string, opts domain.RetrieveOptions,
) (*domain.Answer, error) {
	s.gotSession = sessionToken
	s.gotQuestion = question
	s.gotOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func (s *stubChatService) History(
	_ context.Context, sessionToken string, _ int,
) ([]domain.Message, error) {
	s.gotSession = sessionToken
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

// setupTestServices wires stub services and returns a cleanup that
// restores the previous wiring.
func setupTestServices() (*stubIngestService, *stubRetrievalService, *stubChatService, func()) {
	ingest := &stubIngestService{}
	retrieval := &stubRetrievalService{results: []domain.Evidence{
		{ChunkID: "chunk-1", DocumentID: "doc-1", Content: "passage", Similarity: 0.9},
	}}
	chat := &stubChatService{answer: &domain.Answer{
		ConversationID: "conv-1",
		Text:           "stub answer",
		Evidence: []domain.Evidence{
			{ChunkID: "chunk-1", DocumentID: "doc-1", Content: "passage", Similarity: 0.9},
		},
	}}

	SetServices(Services{
		Ingest:    ingest,
		Retrieval: retrieval,
		Chat:      chat,
	})

	cleanup := func() {
		SetServices(Services{})
	}
	return ingest, retrieval, chat, cleanup
}
