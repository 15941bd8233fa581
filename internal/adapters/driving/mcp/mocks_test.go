package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// mockRetrievalService returns canned evidence.
type mockRetrievalService struct {
	results []domain.Evidence
	err     error

	gotQuery string
	gotOpts  domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ []float32, _ domain.RetrieveOptions,
) ([]domain.Evidence, error) {
	return m.results, m.err
}

func (m *mockRetrievalService) Search(
	_ context.Context, query string, opts domain.RetrieveOptions,
) ([]domain.Evidence, error) {
	m.gotQuery = query
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockChatService returns a canned answer and history.
type mockChatService struct {
	answer   *domain.Answer
	messages []domain.Message
	err      error

	gotSession  string
	gotQuestion string
}

func (m *mockChatService) Answer(
	_ context.Context, sessionToken, question string, _ domain.RetrieveOptions,
) (*domain.Answer, error) {
	m.gotSession = sessionToken
	m.gotQuestion = question
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *mockChatService) History(
	_ context.Context, _ string, _ int,
) ([]domain.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.messages, nil
}

// mockIngestService records ingests and serves canned documents.
type mockIngestService struct {
	docID   string
	docs    []domain.Document
	content string
	err     error

	gotRequest driving.IngestRequest
}

func (m *mockIngestService) Ingest(_ context.Context, req driving.IngestRequest) (string, error) {
	m.gotRequest = req
	if m.err != nil {
		return "", m.err
	}
	return m.docID, nil
}

func (m *mockIngestService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestService) List(_ context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *mockIngestService) Content(_ context.Context, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.content, nil
}
