package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	c := New()
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplit_ShortText(t *testing.T) {
	c := New()
	fragments := c.Split("hello world")
	require.Len(t, fragments, 1)
	assert.Equal(t, "hello world", fragments[0].Content)
}

func TestSplit_OverlapCarriesText(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(4))
	fragments := c.Split("abcdefghijklmnopqrst")

	require.GreaterOrEqual(t, len(fragments), 2)
	assert.Equal(t, "abcdefghij", fragments[0].Content)
	// Second fragment starts chunkSize-overlap runes in.
	assert.True(t, strings.HasPrefix(fragments[1].Content, "ghij"))
}

func TestSplit_CoversWholeText(t *testing.T) {
	c := New(WithChunkSize(50), WithOverlap(10))
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	fragments := c.Split(text)

	require.NotEmpty(t, fragments)
	assert.True(t, strings.HasPrefix(text, fragments[0].Content[:10]))
	last := fragments[len(fragments)-1].Content
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), last))
}

func TestSplit_RuneSafe(t *testing.T) {
	c := New(WithChunkSize(5), WithOverlap(1))
	fragments := c.Split("héllo wörld ünïcode tèxt")

	for _, f := range fragments {
		assert.True(t, len([]rune(f.Content)) <= 5)
		// Valid UTF-8 implied; no fragment should start or end mid-rune.
		assert.Equal(t, f.Content, strings.ToValidUTF8(f.Content, ""))
	}
}

func TestNew_OverlapClamped(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(200))
	assert.Equal(t, 25, c.Overlap())
}

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultChunkSize, c.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, c.Overlap())
}
