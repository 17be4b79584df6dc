package usecase

import (
	"context"
	"log/slog"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// AugmentedSource wraps a TweetSource and tops the timeline up with
// favorite authors' own recent tweets, so a starred author surfaces even
// when the home timeline misses them. Author-fetch failures degrade to
// the plain timeline.
type AugmentedSource struct {
	inner        ports.TweetSource
	store        ports.Store
	maxPerAuthor int
	logger       *slog.Logger
}

var _ ports.TweetSource = (*AugmentedSource)(nil)

// NewAugmentedSource wires the wrapper. maxPerAuthor <= 0 disables the
// augmentation entirely.
func NewAugmentedSource(inner ports.TweetSource, store ports.Store, maxPerAuthor int, logger *slog.Logger) *AugmentedSource {
	return &AugmentedSource{
		inner:        inner,
		store:        store,
		maxPerAuthor: maxPerAuthor,
		logger:       logger,
	}
}

// FetchRecent merges the inner timeline with starred authors' tweets,
// deduplicated by tweet id.
func (s *AugmentedSource) FetchRecent(ctx context.Context, maxItems, hours int) ([]domain.Tweet, error) {
	tweets, err := s.inner.FetchRecent(ctx, maxItems, hours)
	if err != nil {
		return nil, err
	}
	if s.maxPerAuthor <= 0 {
		return tweets, nil
	}

	favorites, err := s.store.FavoriteAuthors(ctx)
	if err != nil {
		s.logger.Warn("starred author lookup failed, using plain timeline", "error", err)
		return tweets, nil
	}
	if len(favorites) == 0 {
		return tweets, nil
	}

	extra, err := s.inner.FetchForAuthors(ctx, favorites, s.maxPerAuthor, hours)
	if err != nil {
		s.logger.Warn("starred author fetch failed, using plain timeline", "error", err)
		return tweets, nil
	}

	seen := make(map[string]struct{}, len(tweets))
	for _, t := range tweets {
		seen[t.ID] = struct{}{}
	}
	for _, t := range extra {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		tweets = append(tweets, t)
	}
	return tweets, nil
}

// FetchForAuthors passes through to the inner source.
func (s *AugmentedSource) FetchForAuthors(ctx context.Context, handles []string, maxPerAuthor, hours int) ([]domain.Tweet, error) {
	return s.inner.FetchForAuthors(ctx, handles, maxPerAuthor, hours)
}
