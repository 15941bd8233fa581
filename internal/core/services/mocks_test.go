package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// fakeEmbedder returns canned vectors per text, with a unit fallback so
// unmapped inputs still embed.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return 3 }
func (f *fakeEmbedder) ModelName() string            { return "fake-embedder" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

// bruteIndex is an exact cosine-similarity index, so tests are not at
// the mercy of approximate recall.
type bruteIndex struct {
	mu        sync.Mutex
	vecs      map[string][]float32
	addCalls  int
	failAddAt int // 1-based call number to fail on; 0 disables
}

var _ driven.VectorIndex = (*bruteIndex)(nil)

func newBruteIndex() *bruteIndex {
	return &bruteIndex{vecs: make(map[string][]float32)}
}

func (b *bruteIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addCalls++
	if b.failAddAt > 0 && b.addCalls >= b.failAddAt {
		return errors.New("index full")
	}
	v := make([]float32, len(embedding))
	copy(v, embedding)
	b.vecs[chunkID] = v
	return nil
}

func (b *bruteIndex) Delete(_ context.Context, chunkID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.vecs, chunkID)
	return nil
}

func (b *bruteIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hits := make([]driven.VectorHit, 0, len(b.vecs))
	for id, vec := range b.vecs {
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: cosine(query, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *bruteIndex) Close() error { return nil }

func (b *bruteIndex) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.vecs)
}

// paragraphChunker splits on blank lines, one fragment per paragraph.
type paragraphChunker struct{}

var _ driven.Chunker = paragraphChunker{}

func (paragraphChunker) Split(text string) []domain.Fragment {
	var fragments []domain.Fragment
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fragments = append(fragments, domain.Fragment{Content: part})
	}
	return fragments
}

// fakeGenerator returns a fixed answer and records what it was asked.
type fakeGenerator struct {
	answer string
	err    error

	gotQuestion string
	gotHistory  []domain.Message
	gotEvidence []domain.Evidence
	calls       int
}

var _ driven.Generator = (*fakeGenerator)(nil)

func (f *fakeGenerator) Answer(
	_ context.Context, question string, history []domain.Message, evidence []domain.Evidence,
) (string, error) {
	f.calls++
	f.gotQuestion = question
	f.gotHistory = history
	f.gotEvidence = evidence
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) ModelName() string            { return "fake-generator" }
func (f *fakeGenerator) Ping(_ context.Context) error { return nil }
func (f *fakeGenerator) Close() error                 { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
