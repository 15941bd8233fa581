// Package hnsw provides an in-process approximate nearest-neighbour
// index over chunk embeddings, implementing the hierarchical navigable
// small world graph with cosine similarity.
//
// The index is internally synchronised: searches run concurrently with
// each other and are serialised against mutations, so a reader may miss
// a vector inserted after its search began but never observes a torn
// one. Recall is tuned with EfSearch; raising it trades query latency
// for better recall. The graph lives in memory and is rebuilt from the
// chunk store at startup.
package hnsw

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default tuning parameters.
const (
	// DefaultM is the number of bidirectional links per node above
	// level zero.
	DefaultM = 16

	// DefaultEfConstruction is the candidate list size while building.
	DefaultEfConstruction = 200

	// DefaultEfSearch is the candidate list size while querying.
	// The effective value never drops below the requested k.
	DefaultEfSearch = 64
)

// Config holds tuning parameters for the index.
type Config struct {
	// Dimension is the embedding vector size. Required.
	Dimension int

	// M is the maximum links per node above level zero (default 16).
	M int

	// EfConstruction is the build-time candidate list size (default 200).
	EfConstruction int

	// EfSearch is the query-time candidate list size (default 64).
	EfSearch int

	// Seed fixes the level-assignment randomness. Zero selects a
	// deterministic default, which keeps tests reproducible.
	Seed int64
}

type node struct {
	id      string
	vec     []float32 // unit-normalised
	links   [][]int   // neighbour node indices per level
	deleted bool
}

// Index is a hierarchical navigable small world graph.
type Index struct {
	mu sync.RWMutex

	dim            int
	m              int
	mMax0          int
	efConstruction int
	efSearch       int
	levelMult      float64

	nodes    []*node
	byID     map[string]int
	entry    int // index into nodes, -1 when empty
	maxLevel int
	live     int
	rng      *rand.Rand
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("hnsw: dimension must be positive")
	}
	if cfg.M <= 0 {
		cfg.M = DefaultM
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultEfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultEfSearch
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	return &Index{
		dim:            cfg.Dimension,
		m:              cfg.M,
		mMax0:          cfg.M * 2,
		efConstruction: cfg.EfConstruction,
		efSearch:       cfg.EfSearch,
		levelMult:      1.0 / math.Log(float64(cfg.M)),
		byID:           make(map[string]int),
		entry:          -1,
		maxLevel:       -1,
		rng:            rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // level assignment, not security
	}, nil
}

// SetEfSearch adjusts the query-time recall/latency trade-off.
func (idx *Index) SetEfSearch(ef int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if ef > 0 {
		idx.efSearch = ef
	}
}

// Len returns the number of live vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.live
}

// Add inserts a vector for the given chunk ID. Re-adding an id with the
// same vector is a no-op; a different vector replaces the old one.
func (idx *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != idx.dim {
		return errors.New("hnsw: embedding dimension mismatch")
	}

	vec := normalize(embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.byID[chunkID]; ok {
		if equalVec(idx.nodes[old].vec, vec) {
			return nil
		}
		idx.tombstone(old)
	}

	idx.insert(chunkID, vec)
	return nil
}

// Delete removes a vector from the index. Unknown ids are a no-op.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.byID[chunkID]
	if !ok {
		return nil
	}
	idx.tombstone(n)
	return nil
}

// Search finds the k nearest neighbours to the query vector, best first.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != idx.dim {
		return nil, errors.New("hnsw: query dimension mismatch")
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.entry < 0 || idx.live == 0 {
		return nil, nil
	}

	curr := idx.entry
	for level := idx.maxLevel; level > 0; level-- {
		curr = idx.greedyClosest(q, curr, level)
	}

	ef := idx.efSearch
	if ef < k {
		ef = k
	}
	// Tombstones still route traffic but never surface; widen the
	// candidate list so they do not crowd out live results.
	if dead := len(idx.nodes) - idx.live; dead > 0 && ef < k+dead {
		extra := k + dead
		if extra > len(idx.nodes) {
			extra = len(idx.nodes)
		}
		if ef < extra {
			ef = extra
		}
	}

	candidates := idx.searchLayer(q, curr, ef, 0)

	hits := make([]driven.VectorHit, 0, k)
	for _, c := range candidates {
		n := idx.nodes[c.node]
		if n.deleted {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    n.id,
			Similarity: float64(1 - c.dist),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.nodes = nil
	idx.byID = nil
	idx.entry = -1
	idx.live = 0
	return nil
}

// tombstone marks a node deleted, keeping its links so the graph stays
// navigable, and repoints the entry if needed. Caller holds the lock.
func (idx *Index) tombstone(n int) {
	if idx.nodes[n].deleted {
		return
	}
	idx.nodes[n].deleted = true
	delete(idx.byID, idx.nodes[n].id)
	idx.live--

	if idx.entry == n {
		// Any live node can serve as the new entry; pick the highest.
		idx.entry = -1
		idx.maxLevel = -1
		for i, cand := range idx.nodes {
			if cand.deleted {
				continue
			}
			if top := len(cand.links) - 1; top > idx.maxLevel {
				idx.maxLevel = top
				idx.entry = i
			}
		}
		if idx.entry < 0 {
			// Graph is all tombstones; keep routing through the old
			// entry so future inserts can still link up.
			idx.entry = n
			idx.maxLevel = len(idx.nodes[n].links) - 1
		}
	}
}

// insert adds a fresh node. Caller holds the lock.
func (idx *Index) insert(id string, vec []float32) {
	level := idx.randomLevel()
	n := &node{
		id:    id,
		vec:   vec,
		links: make([][]int, level+1),
	}
	nodeIdx := len(idx.nodes)
	idx.nodes = append(idx.nodes, n)
	idx.byID[id] = nodeIdx
	idx.live++

	if idx.entry < 0 {
		idx.entry = nodeIdx
		idx.maxLevel = level
		return
	}

	curr := idx.entry
	for l := idx.maxLevel; l > level; l-- {
		curr = idx.greedyClosest(vec, curr, l)
	}

	top := level
	if top > idx.maxLevel {
		top = idx.maxLevel
	}
	for l := top; l >= 0; l-- {
		candidates := idx.searchLayer(vec, curr, idx.efConstruction, l)
		if len(candidates) == 0 {
			continue
		}
		curr = candidates[0].node

		maxConn := idx.m
		if l == 0 {
			maxConn = idx.mMax0
		}

		count := idx.m
		if count > len(candidates) {
			count = len(candidates)
		}
		for _, c := range candidates[:count] {
			n.links[l] = append(n.links[l], c.node)
			idx.linkBack(c.node, nodeIdx, l, maxConn)
		}
	}

	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entry = nodeIdx
	}
}

// linkBack adds a reverse edge and prunes the neighbour's list back to
// maxConn by keeping its closest links. Caller holds the lock.
func (idx *Index) linkBack(from, to, level, maxConn int) {
	n := idx.nodes[from]
	if level >= len(n.links) {
		return
	}
	n.links[level] = append(n.links[level], to)
	if len(n.links[level]) <= maxConn {
		return
	}

	best := make([]candidate, 0, len(n.links[level]))
	for _, nb := range n.links[level] {
		best = append(best, candidate{node: nb, dist: cosineDist(n.vec, idx.nodes[nb].vec)})
	}
	sortCandidates(best)
	n.links[level] = n.links[level][:0]
	for _, c := range best[:maxConn] {
		n.links[level] = append(n.links[level], c.node)
	}
}

// greedyClosest walks level links towards the query until no neighbour
// improves on the current node. Caller holds at least a read lock.
func (idx *Index) greedyClosest(q []float32, start, level int) int {
	curr := start
	currDist := cosineDist(q, idx.nodes[curr].vec)
	for {
		improved := false
		n := idx.nodes[curr]
		if level < len(n.links) {
			for _, nb := range n.links[level] {
				if d := cosineDist(q, idx.nodes[nb].vec); d < currDist {
					curr, currDist = nb, d
					improved = true
				}
			}
		}
		if !improved {
			return curr
		}
	}
}

// searchLayer runs the ef-bounded best-first search on one level and
// returns candidates ordered by ascending distance. Caller holds at
// least a read lock.
func (idx *Index) searchLayer(q []float32, entry, ef, level int) []candidate {
	visited := make(map[int]struct{}, ef*2)
	visited[entry] = struct{}{}

	start := candidate{node: entry, dist: cosineDist(q, idx.nodes[entry].vec)}

	frontier := &minHeap{start}
	heap.Init(frontier)
	results := &maxHeap{start}
	heap.Init(results)

	for frontier.Len() > 0 {
		c := heap.Pop(frontier).(candidate)
		worst := (*results)[0].dist
		if c.dist > worst && results.Len() >= ef {
			break
		}

		n := idx.nodes[c.node]
		if level >= len(n.links) {
			continue
		}
		for _, nb := range n.links[level] {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}

			d := cosineDist(q, idx.nodes[nb].vec)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(frontier, candidate{node: nb, dist: d})
				heap.Push(results, candidate{node: nb, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

// randomLevel draws a level from the standard HNSW geometric
// distribution. Caller holds the lock.
func (idx *Index) randomLevel() int {
	u := idx.rng.Float64()
	for u == 0 {
		u = idx.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.levelMult))
}
