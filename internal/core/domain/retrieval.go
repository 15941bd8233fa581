package domain

// Evidence is a chunk returned by retrieval as grounding for an answer.
type Evidence struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's owning document.
	DocumentID string

	// Content is the chunk text.
	Content string

	// ImageURIs lists image resources attached to the chunk.
	ImageURIs []string

	// Similarity is the cosine similarity to the query, in [-1, 1].
	Similarity float64
}

// RetrieveOptions configures a retrieval query. Zero values select the
// service defaults.
type RetrieveOptions struct {
	// MatchCount is the maximum number of evidence items to return.
	MatchCount int

	// Threshold is the minimum similarity a chunk must reach to qualify.
	Threshold float64

	// ThresholdSet distinguishes an explicit zero threshold from the
	// default. Callers setting Threshold directly should set this too;
	// the option helpers handle it.
	ThresholdSet bool

	// DocumentID restricts results to chunks of a single document.
	// Empty means no restriction.
	DocumentID string
}

// WithThreshold returns a copy of the options with an explicit threshold.
func (o RetrieveOptions) WithThreshold(t float64) RetrieveOptions {
	o.Threshold = t
	o.ThresholdSet = true
	return o
}

// Answer is the result of one question/answer turn: the generated text
// together with the evidence it was grounded on.
type Answer struct {
	// ConversationID identifies the conversation the turn was recorded in.
	ConversationID string

	// Text is the generated answer, opaque to the core.
	Text string

	// Evidence lists the retrieved chunks in rank order. May be empty
	// for off-topic questions; that is not an error.
	Evidence []Evidence
}
