package domain

import (
	"fmt"
	"time"
)

// Vote polarities accepted by the feedback machine.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// ValidateVote rejects unknown polarities at the point of entry.
func ValidateVote(vote string) error {
	if vote != VoteUp && vote != VoteDown {
		return fmt.Errorf("invalid vote %q: must be %q or %q", vote, VoteUp, VoteDown)
	}
	return nil
}

// Vote is a single committed feedback event. Created once, never mutated;
// it is the training signal for RAG context and author stats.
type Vote struct {
	TweetID   string
	Vote      string
	Notes     string
	MessageID int64
	VotedAt   time.Time
}

// VoteHistoryEntry joins a vote with metadata of its originating tweet.
// HasTweet is false for orphaned votes whose tweet cannot be resolved.
type VoteHistoryEntry struct {
	Vote           Vote
	AuthorUsername string
	IsRetweet      bool
	Score          *int
	HasTweet       bool
}

// AuthorStat is the derived per-author reputation view, recomputed on
// demand from the full vote history.
type AuthorStat struct {
	Username     string
	UpVotes      int
	DownVotes    int
	WeightedUp   float64
	WeightedDown float64
	Reputation   float64
	AvgScore     float64
	Favorite     bool
	Muted        bool
}

// SimilarTweet is one nearest-neighbor result from the store: a
// previously-voted tweet ranked by cosine similarity to a query vector.
type SimilarTweet struct {
	TweetID    string
	Text       string
	Vote       string
	Similarity float64
}
