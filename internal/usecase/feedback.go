package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// UndoResult reports the outcome of an undo request.
type UndoResult string

const (
	UndoCancelled UndoResult = "cancelled"
	UndoTooLate   UndoResult = "too late"
)

// pendingVote is the staging record for one tweet's vote: the payload plus
// the cancellable handle of its delayed commit.
type pendingVote struct {
	vote  domain.Vote
	text  string
	timer *time.Timer
}

// FeedbackMachine turns a tentative vote into a committed one after a
// grace window, supporting cancellation (undo) until the timer fires.
// It owns all pending entries; at most one pending vote exists per tweet,
// and a superseding vote cancels the prior timer before starting its own.
type FeedbackMachine struct {
	store    ports.Store
	embedder ports.Embedder
	window   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingVote
}

// NewFeedbackMachine wires the state machine. A nil embedder skips the
// embedding step on commit.
func NewFeedbackMachine(store ports.Store, embedder ports.Embedder, window time.Duration, logger *slog.Logger) *FeedbackMachine {
	return &FeedbackMachine{
		store:    store,
		embedder: embedder,
		window:   window,
		logger:   logger,
		pending:  map[string]*pendingVote{},
	}
}

// Stage validates and stages a vote, scheduling its commit after the undo
// window. tweetText is carried along so the commit can embed the voted
// tweet without another lookup.
func (m *FeedbackMachine) Stage(tweetID, vote, notes, tweetText string, messageID int64) error {
	if err := domain.ValidateVote(vote); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.pending[tweetID]; ok {
		// Stop may return false when the prior timer has already fired
		// but its callback is still waiting on the mutex. The identity
		// check in commit keeps that stale callback from committing the
		// vote staged below.
		prior.timer.Stop()
		m.logger.Info("superseding pending vote", "tweet", tweetID, "prior", prior.vote.Vote, "new", vote)
	}

	pv := &pendingVote{
		vote: domain.Vote{
			TweetID:   tweetID,
			Vote:      vote,
			Notes:     notes,
			MessageID: messageID,
			VotedAt:   time.Now().UTC(),
		},
		text: tweetText,
	}
	pv.timer = time.AfterFunc(m.window, func() { m.commit(tweetID, pv) })
	m.pending[tweetID] = pv

	m.logger.Info("vote pending", "tweet", tweetID, "vote", vote, "window", m.window)
	return nil
}

// Undo cancels the pending vote for a tweet if its commit has not fired
// yet. After commit the vote is terminal and Undo reports "too late".
func (m *FeedbackMachine) Undo(tweetID string) UndoResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	pv, ok := m.pending[tweetID]
	if !ok || !pv.timer.Stop() {
		return UndoTooLate
	}

	delete(m.pending, tweetID)
	m.logger.Info("vote cancelled", "tweet", tweetID, "vote", pv.vote.Vote)
	return UndoCancelled
}

// Pending reports whether a vote is currently staged for the tweet.
func (m *FeedbackMachine) Pending(tweetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[tweetID]
	return ok
}

// commit persists the staged vote and seeds the RAG corpus with the voted
// tweet's embedding. Store and embedding failures are logged, never
// raised into the channel-handling code. Only the entry this timer was
// scheduled for may commit; a superseded entry is left to its successor.
func (m *FeedbackMachine) commit(tweetID string, pv *pendingVote) {
	m.mu.Lock()
	if m.pending[tweetID] != pv {
		m.mu.Unlock()
		return
	}
	delete(m.pending, tweetID)
	m.mu.Unlock()

	ctx := context.Background()

	if err := m.store.SaveVote(ctx, pv.vote); err != nil {
		m.logger.Error("vote commit failed", "tweet", tweetID, "error", err)
		return
	}
	m.logger.Info("vote committed", "tweet", tweetID, "vote", pv.vote.Vote, "notes", pv.vote.Notes)

	m.embedVotedTweet(ctx, tweetID, pv.text)
}

// embedVotedTweet stores an embedding for the voted tweet unless one
// already exists. Failures never affect the committed vote.
func (m *FeedbackMachine) embedVotedTweet(ctx context.Context, tweetID, text string) {
	if m.embedder == nil || text == "" {
		return
	}

	exists, err := m.store.HasEmbedding(ctx, tweetID)
	if err != nil {
		m.logger.Error("embedding existence check failed", "tweet", tweetID, "error", err)
		return
	}
	if exists {
		return
	}

	vectors, err := m.embedder.EmbedBatch(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		m.logger.Error("embedding generation failed", "tweet", tweetID, "error", err)
		return
	}
	if err := m.store.SaveEmbedding(ctx, tweetID, vectors[0]); err != nil {
		m.logger.Error("embedding save failed", "tweet", tweetID, "error", err)
	}
}
