package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory ports.Store shared by the usecase tests.
type fakeStore struct {
	mu          sync.Mutex
	tweets      map[string]*domain.StoredTweet
	votes       []domain.Vote
	history     []domain.VoteHistoryEntry
	favorites   map[string]bool
	muted       map[string]bool
	embeddings  map[string][]float64
	neighbors   []domain.SimilarTweet
	experiments map[string][]domain.ScoreResult

	saveVoteErr    error
	similarErr     error
	voteHistoryErr error
}

var _ ports.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		tweets:      map[string]*domain.StoredTweet{},
		favorites:   map[string]bool{},
		muted:       map[string]bool{},
		embeddings:  map[string][]float64{},
		experiments: map[string][]domain.ScoreResult{},
	}
}

func (s *fakeStore) GetTweet(_ context.Context, id string) (*domain.StoredTweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tweets[id], nil
}

func (s *fakeStore) SaveTweets(_ context.Context, tweets []domain.ScoredTweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range tweets {
		stored := &domain.StoredTweet{Tweet: st.Tweet, Reason: st.Reason}
		if st.State != domain.ScoreStateUnscored {
			score := st.Score
			stored.Score = &score
		}
		s.tweets[st.Tweet.ID] = stored
	}
	return nil
}

func (s *fakeStore) MarkTweetSent(_ context.Context, id string, messageID int64) error {
	return nil
}

func (s *fakeStore) SaveVote(_ context.Context, vote domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveVoteErr != nil {
		return s.saveVoteErr
	}
	s.votes = append(s.votes, vote)
	return nil
}

func (s *fakeStore) savedVotes() []domain.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Vote, len(s.votes))
	copy(out, s.votes)
	return out
}

func (s *fakeStore) VoteHistory(_ context.Context) ([]domain.VoteHistoryEntry, error) {
	if s.voteHistoryErr != nil {
		return nil, s.voteHistoryErr
	}
	return s.history, nil
}

func (s *fakeStore) FavoriteAuthors(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for u := range s.favorites {
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeStore) MutedAuthors(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for u := range s.muted {
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeStore) AddFavoriteAuthor(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites[username] = true
	return nil
}

func (s *fakeStore) RemoveFavoriteAuthor(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites, username)
	return nil
}

func (s *fakeStore) IsFavoriteAuthor(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites[username], nil
}

func (s *fakeStore) AddMutedAuthor(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted[username] = true
	return nil
}

func (s *fakeStore) RemoveMutedAuthor(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.muted, username)
	return nil
}

func (s *fakeStore) IsMutedAuthor(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted[username], nil
}

func (s *fakeStore) HasEmbedding(_ context.Context, tweetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.embeddings[tweetID]
	return ok, nil
}

func (s *fakeStore) SaveEmbedding(_ context.Context, tweetID string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[tweetID] = vector
	return nil
}

func (s *fakeStore) SimilarVoted(_ context.Context, vector []float64, limit int) ([]domain.SimilarTweet, error) {
	if s.similarErr != nil {
		return nil, s.similarErr
	}
	if limit > 0 && len(s.neighbors) > limit {
		return s.neighbors[:limit], nil
	}
	return s.neighbors, nil
}

func (s *fakeStore) SaveExperimentScores(_ context.Context, experimentID, variant string, scores []domain.ScoreResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiments[experimentID+"/"+variant] = scores
	return nil
}

// fakeSource returns a canned batch.
type fakeSource struct {
	tweets    []domain.Tweet
	byAuthor  map[string][]domain.Tweet
	fetchErr  error
	authorErr error
}

var _ ports.TweetSource = (*fakeSource)(nil)

func (f *fakeSource) FetchRecent(_ context.Context, maxItems, _ int) ([]domain.Tweet, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.tweets) > maxItems {
		return f.tweets[:maxItems], nil
	}
	return f.tweets, nil
}

func (f *fakeSource) FetchForAuthors(_ context.Context, handles []string, maxPerAuthor, _ int) ([]domain.Tweet, error) {
	if f.authorErr != nil {
		return nil, f.authorErr
	}
	var out []domain.Tweet
	for _, h := range handles {
		tweets := f.byAuthor[h]
		if len(tweets) > maxPerAuthor {
			tweets = tweets[:maxPerAuthor]
		}
		out = append(out, tweets...)
	}
	return out, nil
}

// fakeScorer returns canned scores and records the prompts it was asked for.
type fakeScorer struct {
	results    map[string][]domain.ScoreResult
	scoreErr   error
	promptsRun []string
	contexts   []string
}

var _ ports.Scorer = (*fakeScorer)(nil)

func (f *fakeScorer) Score(ctx context.Context, tweets []domain.Tweet, ragContext string) ([]domain.ScoreResult, error) {
	return f.ScoreWithPrompt(ctx, tweets, "V1", ragContext)
}

func (f *fakeScorer) ScoreWithPrompt(_ context.Context, _ []domain.Tweet, promptKey, ragContext string) ([]domain.ScoreResult, error) {
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	f.promptsRun = append(f.promptsRun, promptKey)
	f.contexts = append(f.contexts, ragContext)
	return f.results[promptKey], nil
}

// fakeMessenger records deliveries.
type fakeMessenger struct {
	headerCount  int
	sent         []domain.ScoredTweet
	errors       []string
	nextID       int64
	sendErr      error
	failTweetIDs map[string]bool
}

var _ ports.Messenger = (*fakeMessenger)(nil)

func (f *fakeMessenger) SendTweet(_ context.Context, tweet domain.ScoredTweet) (int64, error) {
	if f.sendErr != nil || f.failTweetIDs[tweet.Tweet.ID] {
		if f.sendErr != nil {
			return 0, f.sendErr
		}
		return 0, fmt.Errorf("delivery failed for %s", tweet.Tweet.ID)
	}
	f.sent = append(f.sent, tweet)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) SendDigestHeader(_ context.Context, count int) error {
	f.headerCount = count
	return nil
}

func (f *fakeMessenger) SendErrorNotification(_ context.Context, message string) error {
	f.errors = append(f.errors, message)
	return nil
}

// fakeEmbedder returns a fixed vector per text.
type fakeEmbedder struct {
	vector []float64
	err    error
	calls  int
}

var _ ports.Embedder = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}
