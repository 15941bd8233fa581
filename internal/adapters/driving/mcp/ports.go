package mcp

import (
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP
// server. This provides a single injection point for dependency
// injection.
type Ports struct {
	// Retrieval provides semantic search over the index.
	Retrieval driving.RetrievalService

	// Chat answers questions and exposes conversation history.
	Chat driving.ChatService

	// Ingest manages documents.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	// Chat and Ingest are optional; their tools degrade gracefully.
	return nil
}
