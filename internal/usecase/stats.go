package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// retweetVoteWeight discounts votes on reshared content: a retweet says
// less about the author than an original post.
const retweetVoteWeight = 0.5

// AuthorStats computes per-author reputation from the full vote history.
// It is a pure read recomputed on every call, never incrementally
// maintained, so historical edits can never leave it stale.
type AuthorStats struct {
	store ports.Store
}

// NewAuthorStats wires the aggregator.
func NewAuthorStats(store ports.Store) *AuthorStats {
	return &AuthorStats{store: store}
}

type authorAccum struct {
	upVotes      int
	downVotes    int
	weightedUp   float64
	weightedDown float64
	scoreSum     int
	scoreCount   int
}

// Compute aggregates weighted up/down votes per author and returns the
// view sorted by reputation, highest first. Orphaned votes are skipped.
func (a *AuthorStats) Compute(ctx context.Context) ([]domain.AuthorStat, error) {
	history, err := a.store.VoteHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vote history: %w", err)
	}

	accums := map[string]*authorAccum{}
	for _, entry := range history {
		if !entry.HasTweet {
			continue
		}

		author := NormalizeHandle(entry.AuthorUsername)
		acc, ok := accums[author]
		if !ok {
			acc = &authorAccum{}
			accums[author] = acc
		}

		weight := 1.0
		if entry.IsRetweet {
			weight = retweetVoteWeight
		}

		switch entry.Vote.Vote {
		case domain.VoteUp:
			acc.upVotes++
			acc.weightedUp += weight
		case domain.VoteDown:
			acc.downVotes++
			acc.weightedDown += weight
		}

		if entry.Score != nil {
			acc.scoreSum += *entry.Score
			acc.scoreCount++
		}
	}

	favorites, err := a.store.FavoriteAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorite authors: %w", err)
	}
	muted, err := a.store.MutedAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load muted authors: %w", err)
	}
	favoriteSet := map[string]bool{}
	for _, u := range favorites {
		favoriteSet[NormalizeHandle(u)] = true
	}
	mutedSet := map[string]bool{}
	for _, u := range muted {
		mutedSet[NormalizeHandle(u)] = true
	}

	stats := make([]domain.AuthorStat, 0, len(accums))
	for author, acc := range accums {
		stat := domain.AuthorStat{
			Username:     author,
			UpVotes:      acc.upVotes,
			DownVotes:    acc.downVotes,
			WeightedUp:   acc.weightedUp,
			WeightedDown: acc.weightedDown,
			Favorite:     favoriteSet[author],
			Muted:        mutedSet[author],
		}
		if total := acc.weightedUp + acc.weightedDown; total > 0 {
			stat.Reputation = acc.weightedUp / total
		}
		if acc.scoreCount > 0 {
			stat.AvgScore = float64(acc.scoreSum) / float64(acc.scoreCount)
		}
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Reputation != stats[j].Reputation {
			return stats[i].Reputation > stats[j].Reputation
		}
		return stats[i].Username < stats[j].Username
	})
	return stats, nil
}
