package domain

import "time"

// Metrics carries engagement counters as returned by the fetch client.
type Metrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// QuotedTweet is the one-level-deep quoted/parent tweet, kept in the
// compact shape the scorer sees.
type QuotedTweet struct {
	AuthorUsername string `json:"author"`
	Text           string `json:"text"`
}

// Tweet is a core entity describing a single fetched post. Immutable once
// fetched; scoring enrichment lives in ScoredTweet.
type Tweet struct {
	ID             string
	AuthorUsername string
	AuthorName     string
	Text           string
	URL            string
	Metrics        Metrics
	Quoted         *QuotedTweet
	IsRetweet      bool
	CreatedAt      time.Time
}

// ScoreState distinguishes unscored tweets from scored ones that passed or
// failed their tier threshold.
type ScoreState string

const (
	ScoreStateUnscored ScoreState = "unscored"
	ScoreStatePassed   ScoreState = "passed"
	ScoreStateFailed   ScoreState = "failed"
)

// ScoreResult is one entry of the scorer's response: a score in [0,100]
// with a free-text justification.
type ScoreResult struct {
	TweetID string `json:"tweet_id"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
}

// ScoredTweet is a tweet after the scoring and tiered-decision passes.
type ScoredTweet struct {
	Tweet     Tweet
	Score     int
	Reason    string
	State     ScoreState
	Tier      Tier
	Threshold int
}

// StoredTweet is the persisted view used by deduplication. Score is nil
// for tweets that were saved but never scored.
type StoredTweet struct {
	Tweet  Tweet
	Score  *int
	Reason string
	SentAt *time.Time
}

// Processed reports whether the stored record already carries a relevance
// score. Sending alone does not count; scoring is the expensive step.
func (s *StoredTweet) Processed() bool {
	return s != nil && s.Score != nil
}
