package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// RetrievalService finds the stored chunks most similar to a query.
type RetrievalService interface {
	// Retrieve ranks chunks against a query embedding. Returns up to
	// opts.MatchCount evidence items with similarity >= opts.Threshold,
	// best first. Zero results is a valid outcome, not an error.
	Retrieve(ctx context.Context, query []float32, opts domain.RetrieveOptions) ([]domain.Evidence, error)

	// Search embeds the query text and then retrieves.
	Search(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.Evidence, error)
}
