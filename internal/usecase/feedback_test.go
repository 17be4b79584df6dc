package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

func waitForCommit(t *testing.T, store *fakeStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.savedVotes()) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d committed votes, got %d", want, len(store.savedVotes()))
}

func TestStageCommitsAfterWindow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewFeedbackMachine(store, nil, 20*time.Millisecond, testLogger())

	require.NoError(t, m.Stage("t1", domain.VoteUp, "on-topic", "some text", 42))
	assert.True(t, m.Pending("t1"))
	assert.Empty(t, store.savedVotes(), "vote must not commit inside the window")

	waitForCommit(t, store, 1)
	votes := store.savedVotes()
	require.Len(t, votes, 1)
	assert.Equal(t, "t1", votes[0].TweetID)
	assert.Equal(t, domain.VoteUp, votes[0].Vote)
	assert.Equal(t, "on-topic", votes[0].Notes)
	assert.Equal(t, int64(42), votes[0].MessageID)
	assert.False(t, m.Pending("t1"))
}

func TestUndoWithinWindowCancels(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewFeedbackMachine(store, nil, time.Hour, testLogger())

	require.NoError(t, m.Stage("t1", domain.VoteDown, "", "text", 1))
	assert.Equal(t, UndoCancelled, m.Undo("t1"))
	assert.False(t, m.Pending("t1"))

	// Nothing must ever reach the store.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.savedVotes())
}

func TestUndoAfterCommitReportsTooLate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewFeedbackMachine(store, nil, time.Millisecond, testLogger())

	require.NoError(t, m.Stage("t1", domain.VoteUp, "", "text", 1))
	waitForCommit(t, store, 1)

	assert.Equal(t, UndoTooLate, m.Undo("t1"))
	assert.Len(t, store.savedVotes(), 1)
}

func TestUndoUnknownTweetReportsTooLate(t *testing.T) {
	t.Parallel()

	m := NewFeedbackMachine(newFakeStore(), nil, time.Hour, testLogger())
	assert.Equal(t, UndoTooLate, m.Undo("missing"))
}

func TestSupersedingVoteReplacesPending(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewFeedbackMachine(store, nil, 30*time.Millisecond, testLogger())

	require.NoError(t, m.Stage("t1", domain.VoteUp, "", "text", 1))
	require.NoError(t, m.Stage("t1", domain.VoteDown, "changed my mind", "text", 1))

	waitForCommit(t, store, 1)
	time.Sleep(60 * time.Millisecond)

	votes := store.savedVotes()
	require.Len(t, votes, 1, "superseded vote must never commit")
	assert.Equal(t, domain.VoteDown, votes[0].Vote)
}

func TestStaleTimerCannotCommitSupersedingVote(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewFeedbackMachine(store, nil, time.Hour, testLogger())

	// First vote's timer fires right as the second vote is staged: its
	// Stop() returns false, but the callback has not run yet.
	require.NoError(t, m.Stage("t1", domain.VoteUp, "", "text", 1))
	m.mu.Lock()
	stale := m.pending["t1"]
	m.mu.Unlock()

	require.NoError(t, m.Stage("t1", domain.VoteDown, "changed my mind", "text", 1))

	// The stale callback runs now. It must not touch the new entry.
	m.commit("t1", stale)

	assert.Empty(t, store.savedVotes(), "stale timer must not commit the superseding vote")
	assert.True(t, m.Pending("t1"), "superseding vote keeps its full grace window")
	assert.Equal(t, UndoCancelled, m.Undo("t1"))
}

func TestInvalidVoteRejectedAtStaging(t *testing.T) {
	t.Parallel()

	m := NewFeedbackMachine(newFakeStore(), nil, time.Hour, testLogger())
	err := m.Stage("t1", "sideways", "", "text", 1)
	require.Error(t, err)
	assert.False(t, m.Pending("t1"))
}

func TestCommitEmbedsVotedTweetOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	embedder := &fakeEmbedder{vector: []float64{0.1, 0.2}}
	m := NewFeedbackMachine(store, embedder, time.Millisecond, testLogger())

	require.NoError(t, m.Stage("t1", domain.VoteUp, "", "tweet text", 1))
	waitForCommit(t, store, 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		_, ok := store.embeddings["t1"]
		store.mu.Unlock()
		if ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	store.mu.Lock()
	vector := store.embeddings["t1"]
	store.mu.Unlock()
	assert.Equal(t, []float64{0.1, 0.2}, vector)

	// A second vote on the same tweet skips re-embedding.
	require.NoError(t, m.Stage("t1", domain.VoteDown, "", "tweet text", 1))
	waitForCommit(t, store, 2)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, embedder.calls)
}

func TestCommitSurvivesStoreFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.saveVoteErr = assert.AnError
	m := NewFeedbackMachine(store, nil, time.Millisecond, testLogger())

	require.NoError(t, m.Stage("t1", domain.VoteUp, "", "text", 1))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, store.savedVotes())
	assert.False(t, m.Pending("t1"), "failed commit still clears the pending slot")
}
