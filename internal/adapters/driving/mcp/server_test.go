package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("requires retrieval service", func(t *testing.T) {
		_, err := NewServer(&Ports{})
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("creates server with retrieval only", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("creates server with all ports", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Retrieval: &mockRetrievalService{},
			Chat:      &mockChatService{},
			Ingest:    &mockIngestService{},
		})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}
