package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

func TestParseScoresStrictJSON(t *testing.T) {
	t.Parallel()

	raw := `[{"tweet_id": "1", "score": 85, "reason": "relevant"}]`
	scores := parseScores(raw)
	require.Len(t, scores, 1)
	assert.Equal(t, domain.ScoreResult{TweetID: "1", Score: 85, Reason: "relevant"}, scores[0])
}

func TestParseScoresStripsCodeFence(t *testing.T) {
	t.Parallel()

	raw := "```json\n[{\"tweet_id\": \"1\", \"score\": 70, \"reason\": \"ok\"}]\n```"
	scores := parseScores(raw)
	require.Len(t, scores, 1)
	assert.Equal(t, 70, scores[0].Score)
}

func TestParseScoresRepairsAlmostJSON(t *testing.T) {
	t.Parallel()

	// Trailing comma and single quotes, typical model sloppiness.
	raw := `[{'tweet_id': '1', 'score': 60, 'reason': 'fine'},]`
	scores := parseScores(raw)
	require.Len(t, scores, 1)
	assert.Equal(t, "1", scores[0].TweetID)
	assert.Equal(t, 60, scores[0].Score)
}

func TestParseScoresScansTriplesOutOfProse(t *testing.T) {
	t.Parallel()

	raw := `Here are my scores:
{"tweet_id": "1", "score": 88, "reason": "deep dive"}
and also
{"tweet_id": "2", "score": 12, "reason": "meme"}
Hope that helps!`
	scores := parseScores(raw)
	require.Len(t, scores, 2)
	assert.Equal(t, "1", scores[0].TweetID)
	assert.Equal(t, 88, scores[0].Score)
	assert.Equal(t, "2", scores[1].TweetID)
	assert.Equal(t, "meme", scores[1].Reason)
}

func TestParseScoresGarbageYieldsEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, parseScores("I cannot score these tweets."))
	assert.Empty(t, parseScores(""))
}

func TestParseScoresClampsOutOfRange(t *testing.T) {
	t.Parallel()

	raw := `[{"tweet_id": "1", "score": 250, "reason": "over"}, {"tweet_id": "2", "score": -5, "reason": "under"}]`
	scores := parseScores(raw)
	require.Len(t, scores, 2)
	assert.Equal(t, 100, scores[0].Score)
	assert.Equal(t, 0, scores[1].Score)
}

func TestParseScoresValidatesEntries(t *testing.T) {
	t.Parallel()

	raw := `[{"tweet_id": "", "score": 50, "reason": "no id"}, {"tweet_id": "2", "score": 50, "reason": ""}]`
	scores := parseScores(raw)
	require.Len(t, scores, 1)
	assert.Equal(t, "2", scores[0].TweetID)
	assert.Equal(t, "no reason provided", scores[0].Reason)
}

func TestStripCodeFenceVariants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[]", stripCodeFence("```json\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("```\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("[]"))
}
