package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Default retrieval parameters. The oversample factor and threshold are
// tunable configuration, not invariants.
const (
	DefaultMatchCount = 5
	DefaultThreshold  = 0.5
	DefaultOversample = 2
)

// RetrievalService ranks stored chunks against a query embedding using
// an oversample-then-filter strategy: the approximate index is asked for
// more candidates than needed, then the hard filters (document, minimum
// similarity) are applied client-side.
type RetrievalService struct {
	docStore   driven.DocumentStore
	index      driven.VectorIndex
	embedder   driven.EmbeddingService
	oversample int
}

// NewRetrievalService creates a new retrieval service. An oversample
// factor <= 0 selects DefaultOversample.
func NewRetrievalService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	oversample int,
) *RetrievalService {
	if oversample <= 0 {
		oversample = DefaultOversample
	}
	return &RetrievalService{
		docStore:   docStore,
		index:      index,
		embedder:   embedder,
		oversample: oversample,
	}
}

// Retrieve finds the chunks most similar to the query embedding.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query []float32, opts domain.RetrieveOptions,
) ([]domain.Evidence, error) {
	if s.index == nil {
		return nil, domain.ErrIndexUnavailable
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", domain.ErrInvalidInput)
	}

	matchCount := opts.MatchCount
	if matchCount <= 0 {
		matchCount = DefaultMatchCount
	}
	threshold := opts.Threshold
	if !opts.ThresholdSet && threshold == 0 {
		threshold = DefaultThreshold
	}

	// Over-fetch to absorb index approximation noise and post-filter
	// attrition.
	k := matchCount * s.oversample
	logger.Debug("Retrieve: matchCount=%d threshold=%.2f k=%d filter=%q",
		matchCount, threshold, k, opts.DocumentID)

	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Retrieve: %d raw candidates", len(hits))

	evidence, err := s.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.Evidence, 0, len(evidence))
	for _, e := range evidence {
		if opts.DocumentID != "" && e.DocumentID != opts.DocumentID {
			continue
		}
		if e.Similarity < threshold {
			continue
		}
		filtered = append(filtered, e)
	}

	// Best first; equal similarities break ties by chunk id so identical
	// inputs always produce identical output order.
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].ChunkID < filtered[j].ChunkID
	})

	if len(filtered) > matchCount {
		filtered = filtered[:matchCount]
	}

	logger.Debug("Retrieve: %d results after filtering", len(filtered))
	return filtered, nil
}

// Search embeds the query text and retrieves against the result.
func (s *RetrievalService) Search(
	ctx context.Context, query string, opts domain.RetrieveOptions,
) ([]domain.Evidence, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrEmbeddingFailure)
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrEmbeddingFailure, err)
	}

	return s.Retrieve(ctx, embedding, opts)
}

// hydrate resolves index hits into evidence via the chunk store. Hits
// whose chunk has been deleted since indexing are dropped.
func (s *RetrievalService) hydrate(ctx context.Context, hits []driven.VectorHit) ([]domain.Evidence, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	similarity := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ChunkID
		similarity[hit.ChunkID] = hit.Similarity
	}

	chunks, err := s.docStore.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}

	evidence := make([]domain.Evidence, 0, len(chunks))
	for _, chunk := range chunks {
		evidence = append(evidence, domain.Evidence{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Content:    chunk.Content,
			ImageURIs:  chunk.ImageURIs,
			Similarity: similarity[chunk.ID],
		})
	}
	return evidence, nil
}
