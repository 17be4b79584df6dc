package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

func TestNewShadowScorerDisabledWithoutExperiment(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	scorer := &fakeScorer{}

	assert.Nil(t, NewShadowScorer(scorer, store, "", "V3", testLogger()))
	assert.Nil(t, NewShadowScorer(scorer, store, "exp-1", "", testLogger()))
	assert.NotNil(t, NewShadowScorer(scorer, store, "exp-1", "V3", testLogger()))
}

func TestEvaluatePersistsBothVariants(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	scorer := &fakeScorer{results: map[string][]domain.ScoreResult{
		"V3": {{TweetID: "1", Score: 55, Reason: "challenger view"}},
	}}
	shadow := NewShadowScorer(scorer, store, "exp-1", "V3", testLogger())

	tweets := []domain.Tweet{{ID: "1", AuthorUsername: "a", Text: "x"}}
	control := []domain.ScoreResult{{TweetID: "1", Score: 80, Reason: "control view"}}

	require.NoError(t, shadow.Evaluate(context.Background(), tweets, "some context", control))

	assert.Equal(t, control, store.experiments["exp-1/control"])
	assert.Equal(t, scorer.results["V3"], store.experiments["exp-1/V3"])

	// The challenger scores with the same context block as the control run.
	require.Len(t, scorer.contexts, 1)
	assert.Equal(t, "some context", scorer.contexts[0])
	assert.Equal(t, []string{"V3"}, scorer.promptsRun)
}

func TestEvaluateEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	shadow := NewShadowScorer(&fakeScorer{}, store, "exp-1", "V3", testLogger())
	require.NoError(t, shadow.Evaluate(context.Background(), nil, "", nil))
	assert.Empty(t, store.experiments)
}
