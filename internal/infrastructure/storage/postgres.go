package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// PostgresStore is the source of truth for tweets, votes, author sets,
// embeddings and experiment scores.
type PostgresStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

var _ ports.Store = (*PostgresStore)(nil)

// NewPostgresStore wires an sqlx connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates all tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tweets (
			id              TEXT PRIMARY KEY,
			author_username TEXT NOT NULL,
			author_name     TEXT NOT NULL DEFAULT '',
			text            TEXT NOT NULL,
			url             TEXT NOT NULL DEFAULT '',
			likes           INTEGER NOT NULL DEFAULT 0,
			retweets        INTEGER NOT NULL DEFAULT 0,
			replies         INTEGER NOT NULL DEFAULT 0,
			quoted_author   TEXT,
			quoted_text     TEXT,
			is_retweet      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ,
			filtered        BOOLEAN NOT NULL DEFAULT FALSE,
			filter_score    INTEGER,
			filter_reason   TEXT NOT NULL DEFAULT '',
			sent_at         TIMESTAMPTZ,
			message_id      BIGINT,
			inserted_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id         BIGSERIAL PRIMARY KEY,
			tweet_id   TEXT NOT NULL,
			vote       TEXT NOT NULL,
			notes      TEXT NOT NULL DEFAULT '',
			message_id BIGINT NOT NULL DEFAULT 0,
			voted_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS favorite_authors (
			username TEXT PRIMARY KEY,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS muted_authors (
			username TEXT PRIMARY KEY,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tweet_embeddings (
			tweet_id   TEXT PRIMARY KEY,
			vector     FLOAT8[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS experiment_scores (
			experiment_id TEXT NOT NULL,
			variant       TEXT NOT NULL,
			tweet_id      TEXT NOT NULL,
			score         INTEGER NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			scored_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (experiment_id, variant, tweet_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

type tweetRow struct {
	ID             string         `db:"id"`
	AuthorUsername string         `db:"author_username"`
	AuthorName     string         `db:"author_name"`
	Text           string         `db:"text"`
	URL            string         `db:"url"`
	Likes          int            `db:"likes"`
	Retweets       int            `db:"retweets"`
	Replies        int            `db:"replies"`
	QuotedAuthor   sql.NullString `db:"quoted_author"`
	QuotedText     sql.NullString `db:"quoted_text"`
	IsRetweet      bool           `db:"is_retweet"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	FilterScore    sql.NullInt64  `db:"filter_score"`
	FilterReason   string         `db:"filter_reason"`
	SentAt         sql.NullTime   `db:"sent_at"`
}

func (r tweetRow) toStored() *domain.StoredTweet {
	stored := &domain.StoredTweet{
		Tweet: domain.Tweet{
			ID:             r.ID,
			AuthorUsername: r.AuthorUsername,
			AuthorName:     r.AuthorName,
			Text:           r.Text,
			URL:            r.URL,
			Metrics: domain.Metrics{
				Likes:    r.Likes,
				Retweets: r.Retweets,
				Replies:  r.Replies,
			},
			IsRetweet: r.IsRetweet,
		},
		Reason: r.FilterReason,
	}
	if r.CreatedAt.Valid {
		stored.Tweet.CreatedAt = r.CreatedAt.Time
	}
	if r.QuotedAuthor.Valid || r.QuotedText.Valid {
		stored.Tweet.Quoted = &domain.QuotedTweet{
			AuthorUsername: r.QuotedAuthor.String,
			Text:           r.QuotedText.String,
		}
	}
	if r.FilterScore.Valid {
		score := int(r.FilterScore.Int64)
		stored.Score = &score
	}
	if r.SentAt.Valid {
		sentAt := r.SentAt.Time
		stored.SentAt = &sentAt
	}
	return stored
}

const tweetColumns = `id, author_username, author_name, text, url, likes, retweets, replies,
	quoted_author, quoted_text, is_retweet, created_at, filter_score, filter_reason, sent_at`

// GetTweet returns the stored record or nil when the tweet is unknown.
func (s *PostgresStore) GetTweet(ctx context.Context, id string) (*domain.StoredTweet, error) {
	query, args, err := s.builder.
		Select(tweetColumns).
		From("tweets").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get tweet: %w", err)
	}

	var row tweetRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tweet %s: %w", id, err)
	}
	return row.toStored(), nil
}

// SaveTweets upserts a batch in one transaction. Unscored tweets keep a
// NULL filter score so later runs still see them as unprocessed.
func (s *PostgresStore) SaveTweets(ctx context.Context, tweets []domain.ScoredTweet) error {
	if len(tweets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tweets: %w", err)
	}
	defer tx.Rollback()

	for _, st := range tweets {
		var score any
		if st.State != domain.ScoreStateUnscored {
			score = st.Score
		}
		var quotedAuthor, quotedText any
		if st.Tweet.Quoted != nil {
			quotedAuthor = st.Tweet.Quoted.AuthorUsername
			quotedText = st.Tweet.Quoted.Text
		}
		var createdAt any
		if !st.Tweet.CreatedAt.IsZero() {
			createdAt = st.Tweet.CreatedAt
		}

		query, args, err := s.builder.
			Insert("tweets").
			Columns("id", "author_username", "author_name", "text", "url",
				"likes", "retweets", "replies",
				"quoted_author", "quoted_text", "is_retweet", "created_at",
				"filtered", "filter_score", "filter_reason").
			Values(st.Tweet.ID, st.Tweet.AuthorUsername, st.Tweet.AuthorName, st.Tweet.Text, st.Tweet.URL,
				st.Tweet.Metrics.Likes, st.Tweet.Metrics.Retweets, st.Tweet.Metrics.Replies,
				quotedAuthor, quotedText, st.Tweet.IsRetweet, createdAt,
				st.State == domain.ScoreStatePassed, score, st.Reason).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				likes = EXCLUDED.likes,
				retweets = EXCLUDED.retweets,
				replies = EXCLUDED.replies,
				filtered = CASE WHEN EXCLUDED.filter_score IS NULL THEN tweets.filtered ELSE EXCLUDED.filtered END,
				filter_score = COALESCE(EXCLUDED.filter_score, tweets.filter_score),
				filter_reason = CASE WHEN EXCLUDED.filter_score IS NULL THEN tweets.filter_reason ELSE EXCLUDED.filter_reason END`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build save tweet: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save tweet %s: %w", st.Tweet.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tweets: %w", err)
	}
	return nil
}

// MarkTweetSent records the delivery timestamp and channel message id.
func (s *PostgresStore) MarkTweetSent(ctx context.Context, id string, messageID int64) error {
	query, args, err := s.builder.
		Update("tweets").
		Set("sent_at", time.Now().UTC()).
		Set("message_id", messageID).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark sent: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark tweet %s sent: %w", id, err)
	}
	return nil
}

// SaveVote appends one committed feedback event.
func (s *PostgresStore) SaveVote(ctx context.Context, vote domain.Vote) error {
	query, args, err := s.builder.
		Insert("feedback").
		Columns("tweet_id", "vote", "notes", "message_id", "voted_at").
		Values(vote.TweetID, vote.Vote, vote.Notes, vote.MessageID, vote.VotedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save vote: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save vote for %s: %w", vote.TweetID, err)
	}
	return nil
}

// VoteHistory joins every vote with its tweet's author metadata. Votes on
// unknown tweets come back with HasTweet false.
func (s *PostgresStore) VoteHistory(ctx context.Context) ([]domain.VoteHistoryEntry, error) {
	query, args, err := s.builder.
		Select("f.tweet_id", "f.vote", "f.notes", "f.message_id", "f.voted_at",
			"t.author_username", "t.is_retweet", "t.filter_score", "t.id IS NOT NULL AS has_tweet").
		From("feedback f").
		LeftJoin("tweets t ON t.id = f.tweet_id").
		OrderBy("f.voted_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build vote history: %w", err)
	}

	var rows []struct {
		TweetID        string         `db:"tweet_id"`
		Vote           string         `db:"vote"`
		Notes          string         `db:"notes"`
		MessageID      int64          `db:"message_id"`
		VotedAt        time.Time      `db:"voted_at"`
		AuthorUsername sql.NullString `db:"author_username"`
		IsRetweet      sql.NullBool   `db:"is_retweet"`
		FilterScore    sql.NullInt64  `db:"filter_score"`
		HasTweet       bool           `db:"has_tweet"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query vote history: %w", err)
	}

	entries := make([]domain.VoteHistoryEntry, 0, len(rows))
	for _, r := range rows {
		entry := domain.VoteHistoryEntry{
			Vote: domain.Vote{
				TweetID:   r.TweetID,
				Vote:      r.Vote,
				Notes:     r.Notes,
				MessageID: r.MessageID,
				VotedAt:   r.VotedAt,
			},
			AuthorUsername: r.AuthorUsername.String,
			IsRetweet:      r.IsRetweet.Bool,
			HasTweet:       r.HasTweet,
		}
		if r.FilterScore.Valid {
			score := int(r.FilterScore.Int64)
			entry.Score = &score
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *PostgresStore) listAuthors(ctx context.Context, table string) ([]string, error) {
	query, args, err := s.builder.
		Select("username").
		From(table).
		OrderBy("username ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list %s: %w", table, err)
	}
	var usernames []string
	if err := s.db.SelectContext(ctx, &usernames, query, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return usernames, nil
}

func (s *PostgresStore) addAuthor(ctx context.Context, table, username string) error {
	query, args, err := s.builder.
		Insert(table).
		Columns("username").
		Values(username).
		Suffix("ON CONFLICT (username) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build add to %s: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add %s to %s: %w", username, table, err)
	}
	return nil
}

func (s *PostgresStore) removeAuthor(ctx context.Context, table, username string) error {
	query, args, err := s.builder.
		Delete(table).
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build remove from %s: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove %s from %s: %w", username, table, err)
	}
	return nil
}

func (s *PostgresStore) isAuthor(ctx context.Context, table, username string) (bool, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From(table).
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build check %s: %w", table, err)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check %s in %s: %w", username, table, err)
	}
	return count > 0, nil
}

func (s *PostgresStore) FavoriteAuthors(ctx context.Context) ([]string, error) {
	return s.listAuthors(ctx, "favorite_authors")
}

func (s *PostgresStore) MutedAuthors(ctx context.Context) ([]string, error) {
	return s.listAuthors(ctx, "muted_authors")
}

func (s *PostgresStore) AddFavoriteAuthor(ctx context.Context, username string) error {
	return s.addAuthor(ctx, "favorite_authors", username)
}

func (s *PostgresStore) RemoveFavoriteAuthor(ctx context.Context, username string) error {
	return s.removeAuthor(ctx, "favorite_authors", username)
}

func (s *PostgresStore) IsFavoriteAuthor(ctx context.Context, username string) (bool, error) {
	return s.isAuthor(ctx, "favorite_authors", username)
}

func (s *PostgresStore) AddMutedAuthor(ctx context.Context, username string) error {
	return s.addAuthor(ctx, "muted_authors", username)
}

func (s *PostgresStore) RemoveMutedAuthor(ctx context.Context, username string) error {
	return s.removeAuthor(ctx, "muted_authors", username)
}

func (s *PostgresStore) IsMutedAuthor(ctx context.Context, username string) (bool, error) {
	return s.isAuthor(ctx, "muted_authors", username)
}

// HasEmbedding reports whether a vector exists for the tweet.
func (s *PostgresStore) HasEmbedding(ctx context.Context, tweetID string) (bool, error) {
	query, args, err := s.builder.
		Select("COUNT(*)").
		From("tweet_embeddings").
		Where(sq.Eq{"tweet_id": tweetID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build has embedding: %w", err)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check embedding %s: %w", tweetID, err)
	}
	return count > 0, nil
}

// SaveEmbedding upserts the tweet's vector.
func (s *PostgresStore) SaveEmbedding(ctx context.Context, tweetID string, vector []float64) error {
	query, args, err := s.builder.
		Insert("tweet_embeddings").
		Columns("tweet_id", "vector").
		Values(tweetID, pq.Float64Array(vector)).
		Suffix("ON CONFLICT (tweet_id) DO UPDATE SET vector = EXCLUDED.vector").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save embedding: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save embedding %s: %w", tweetID, err)
	}
	return nil
}

// SimilarVoted ranks voted tweets by cosine similarity to the query
// vector. Vectors live in plain float8 arrays so the ranking happens
// here; the voted corpus stays small enough for that.
func (s *PostgresStore) SimilarVoted(ctx context.Context, vector []float64, limit int) ([]domain.SimilarTweet, error) {
	query, args, err := s.builder.
		Select("f.tweet_id", "t.text", "f.vote", "e.vector").
		Options("DISTINCT ON (f.tweet_id)").
		From("feedback f").
		Join("tweets t ON t.id = f.tweet_id").
		Join("tweet_embeddings e ON e.tweet_id = f.tweet_id").
		OrderBy("f.tweet_id", "f.voted_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build similar voted: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar voted: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarTweet
	for rows.Next() {
		var (
			tweetID, text, vote string
			stored              pq.Float64Array
		)
		if err := rows.Scan(&tweetID, &text, &vote, &stored); err != nil {
			return nil, fmt.Errorf("scan similar voted: %w", err)
		}
		results = append(results, domain.SimilarTweet{
			TweetID:    tweetID,
			Text:       text,
			Vote:       vote,
			Similarity: cosineSimilarity(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar voted: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SaveExperimentScores upserts one variant's scores for a run.
func (s *PostgresStore) SaveExperimentScores(ctx context.Context, experimentID, variant string, scores []domain.ScoreResult) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save experiment scores: %w", err)
	}
	defer tx.Rollback()

	for _, score := range scores {
		query, args, err := s.builder.
			Insert("experiment_scores").
			Columns("experiment_id", "variant", "tweet_id", "score", "reason").
			Values(experimentID, variant, score.TweetID, score.Score, score.Reason).
			Suffix(`ON CONFLICT (experiment_id, variant, tweet_id) DO UPDATE SET
				score = EXCLUDED.score,
				reason = EXCLUDED.reason,
				scored_at = NOW()`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build save experiment score: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save experiment score %s/%s: %w", variant, score.TweetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit experiment scores: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
