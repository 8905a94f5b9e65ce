package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const bm25Doc = `Go makes concurrent programming straightforward with goroutines and channels.

The weather this weekend looks mild with a chance of rain on Sunday.

Channels let goroutines communicate without explicit locks, and the select
statement multiplexes over several channels at once.

Our cafeteria menu rotates weekly and Friday is usually pizza day.`

func TestFilterBM25KeepsRelevantBlocks(t *testing.T) {
	out := FilterBM25(bm25Doc, "goroutines channels", 0)

	assert.Contains(t, out, "goroutines and channels")
	assert.Contains(t, out, "select")
	assert.NotContains(t, out, "weather")
	assert.NotContains(t, out, "pizza")
}

func TestFilterBM25EmptyQueryPassesThrough(t *testing.T) {
	assert.Equal(t, bm25Doc, FilterBM25(bm25Doc, "", 0.5))
	assert.Equal(t, bm25Doc, FilterBM25(bm25Doc, "   ", 0.5))
}

func TestFilterBM25NoMatchesReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", FilterBM25(bm25Doc, "quantum chromodynamics", 0))
}

func TestFilterBM25HighThresholdDropsEverything(t *testing.T) {
	assert.Equal(t, "", FilterBM25(bm25Doc, "goroutines", 1000))
}

func TestFilterBM25EmptyDocument(t *testing.T) {
	assert.Equal(t, "", FilterBM25("", "query", 0))
	assert.Equal(t, "\n\n\n", FilterBM25("\n\n\n", "query", 0))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, tokenize("Hello, WORLD! 42"))
	assert.Empty(t, tokenize("!!! ... ---"))
}

func TestSplitBlocks(t *testing.T) {
	blocks := splitBlocks("first\n\n\n\nsecond\n\n  \n\nthird")
	assert.Len(t, blocks, 3)
}
