package ports

import (
	"context"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

// TweetSource pulls fresh tweets from an upstream provider. Transport
// retries are the provider's own concern.
type TweetSource interface {
	FetchRecent(ctx context.Context, maxItems, hours int) ([]domain.Tweet, error)
	FetchForAuthors(ctx context.Context, handles []string, maxPerAuthor, hours int) ([]domain.Tweet, error)
}

// Scorer invokes the external relevance model over a batch. It returns a
// best-effort subset; callers tolerate partial or empty results.
type Scorer interface {
	Score(ctx context.Context, tweets []domain.Tweet, ragContext string) ([]domain.ScoreResult, error)
	ScoreWithPrompt(ctx context.Context, tweets []domain.Tweet, promptKey, ragContext string) ([]domain.ScoreResult, error)
}

// Embedder converts texts into fixed-length vectors in one batched call.
// May be absent entirely, in which case RAG and vote embedding are skipped.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Store is the transactional source of truth for tweets, votes, author
// sets and embeddings. The engine reads and upserts, never caches.
type Store interface {
	GetTweet(ctx context.Context, id string) (*domain.StoredTweet, error)
	SaveTweets(ctx context.Context, tweets []domain.ScoredTweet) error
	MarkTweetSent(ctx context.Context, id string, messageID int64) error

	SaveVote(ctx context.Context, vote domain.Vote) error
	VoteHistory(ctx context.Context) ([]domain.VoteHistoryEntry, error)

	FavoriteAuthors(ctx context.Context) ([]string, error)
	MutedAuthors(ctx context.Context) ([]string, error)
	AddFavoriteAuthor(ctx context.Context, username string) error
	RemoveFavoriteAuthor(ctx context.Context, username string) error
	IsFavoriteAuthor(ctx context.Context, username string) (bool, error)
	AddMutedAuthor(ctx context.Context, username string) error
	RemoveMutedAuthor(ctx context.Context, username string) error
	IsMutedAuthor(ctx context.Context, username string) (bool, error)

	HasEmbedding(ctx context.Context, tweetID string) (bool, error)
	SaveEmbedding(ctx context.Context, tweetID string, vector []float64) error
	SimilarVoted(ctx context.Context, vector []float64, limit int) ([]domain.SimilarTweet, error)

	SaveExperimentScores(ctx context.Context, experimentID, variant string, scores []domain.ScoreResult) error
}

// Messenger delivers curated tweets to the reader's channel. SendTweet
// returns the channel message reference used to correlate feedback, or 0
// when the channel dropped the message.
type Messenger interface {
	SendTweet(ctx context.Context, tweet domain.ScoredTweet) (int64, error)
	SendDigestHeader(ctx context.Context, count int) error
	SendErrorNotification(ctx context.Context, message string) error
}

// Scheduler controls when curation runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
