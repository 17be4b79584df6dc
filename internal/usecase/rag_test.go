package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

func TestAssembleDisabledWithoutEmbedder(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(nil, newFakeStore(), 5, testLogger())
	got := a.Assemble(context.Background(), []domain.Tweet{{ID: "1", Text: "hello"}})
	assert.Empty(t, got)
}

func TestAssembleEmptyBatch(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(&fakeEmbedder{vector: []float64{1}}, newFakeStore(), 5, testLogger())
	assert.Empty(t, a.Assemble(context.Background(), nil))
}

func TestAssembleDegradesOnEmbeddingFailure(t *testing.T) {
	t.Parallel()

	a := NewContextAssembler(&fakeEmbedder{err: assert.AnError}, newFakeStore(), 5, testLogger())
	got := a.Assemble(context.Background(), []domain.Tweet{{ID: "1", Text: "hello"}})
	assert.Empty(t, got)
}

func TestAssembleDegradesOnLookupFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.similarErr = assert.AnError
	a := NewContextAssembler(&fakeEmbedder{vector: []float64{1}}, store, 5, testLogger())
	got := a.Assemble(context.Background(), []domain.Tweet{{ID: "1", Text: "hello"}})
	assert.Empty(t, got)
}

func TestAssembleRendersLikedAndDisliked(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.neighbors = []domain.SimilarTweet{
		{TweetID: "a", Text: "based rollups update", Vote: domain.VoteUp, Similarity: 0.91},
		{TweetID: "b", Text: "new meme coin", Vote: domain.VoteDown, Similarity: 0.40},
	}
	a := NewContextAssembler(&fakeEmbedder{vector: []float64{1}}, store, 5, testLogger())

	got := a.Assemble(context.Background(), []domain.Tweet{{ID: "1", Text: "hello"}})
	assert.Contains(t, got, "Tweets the user LIKED:")
	assert.Contains(t, got, "Tweets the user DISLIKED:")
	assert.Contains(t, got, `"based rollups update" (similarity 0.91)`)
	assert.Contains(t, got, `"new meme coin" (similarity 0.40)`)
}

func TestAssembleCapsAtLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.neighbors = []domain.SimilarTweet{
		{TweetID: "a", Text: "one", Vote: domain.VoteUp, Similarity: 0.9},
		{TweetID: "b", Text: "two", Vote: domain.VoteUp, Similarity: 0.8},
		{TweetID: "c", Text: "three", Vote: domain.VoteUp, Similarity: 0.7},
	}
	a := NewContextAssembler(&fakeEmbedder{vector: []float64{1}}, store, 2, testLogger())

	got := a.Assemble(context.Background(), []domain.Tweet{{ID: "1", Text: "hello"}})
	assert.Equal(t, 2, strings.Count(got, "- "))
	assert.NotContains(t, got, `"three"`)
}

func TestPreviewTruncatesLongText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	got := preview(long)
	assert.Len(t, []rune(got), contextPreviewLen+3)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "short one", preview("short\none"))
}
