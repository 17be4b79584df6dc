package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// Transition reports returned by the toggle operations.
const (
	TransitionFavorited   = "favorited"
	TransitionUnfavorited = "unfavorited"
	TransitionMuted       = "muted"
	TransitionUnmuted     = "unmuted"
)

// TierResolver maintains the two disjoint author sets and derives the
// per-tier score thresholds from the configured base and offsets.
type TierResolver struct {
	store       ports.Store
	base        int
	favOffset   int
	mutedOffset int
	logger      *slog.Logger
}

// NewTierResolver wires the store-backed resolver.
func NewTierResolver(store ports.Store, base, favOffset, mutedOffset int, logger *slog.Logger) *TierResolver {
	return &TierResolver{
		store:       store,
		base:        base,
		favOffset:   favOffset,
		mutedOffset: mutedOffset,
		logger:      logger,
	}
}

// TierSets is a point-in-time snapshot of the favorite and muted sets,
// loaded once per run so a batch sees a consistent classification.
type TierSets struct {
	Favorite map[string]bool
	Muted    map[string]bool
}

// TierOf classifies an author handle. Muted wins over favorite if the
// store were ever inconsistent; the toggles keep the sets disjoint.
func (s TierSets) TierOf(author string) domain.Tier {
	author = NormalizeHandle(author)
	switch {
	case s.Muted[author]:
		return domain.TierMuted
	case s.Favorite[author]:
		return domain.TierFavorite
	default:
		return domain.TierDefault
	}
}

// NormalizeHandle lowercases a handle and strips a leading @.
func NormalizeHandle(username string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(username)), "@")
}

// Load reads both author sets from the store.
func (r *TierResolver) Load(ctx context.Context) (TierSets, error) {
	favorites, err := r.store.FavoriteAuthors(ctx)
	if err != nil {
		return TierSets{}, fmt.Errorf("load favorite authors: %w", err)
	}
	muted, err := r.store.MutedAuthors(ctx)
	if err != nil {
		return TierSets{}, fmt.Errorf("load muted authors: %w", err)
	}

	sets := TierSets{Favorite: map[string]bool{}, Muted: map[string]bool{}}
	for _, u := range favorites {
		sets.Favorite[NormalizeHandle(u)] = true
	}
	for _, u := range muted {
		sets.Muted[NormalizeHandle(u)] = true
	}
	return sets, nil
}

// Threshold maps a tier to its pass score.
func (r *TierResolver) Threshold(tier domain.Tier) int {
	switch tier {
	case domain.TierFavorite:
		return r.base - r.favOffset
	case domain.TierMuted:
		return r.base + r.mutedOffset
	default:
		return r.base
	}
}

// Floor is the most lenient threshold across tiers. The scorer is always
// invoked at the floor so one scoring pass serves all tiers.
func (r *TierResolver) Floor() int {
	return r.Threshold(domain.TierFavorite)
}

// ToggleFavorite promotes an author toward favorite. A muted author is
// only unmuted (back to default); toggling an existing favorite is a
// no-op that still reports "favorited".
func (r *TierResolver) ToggleFavorite(ctx context.Context, username string) (string, error) {
	username = NormalizeHandle(username)

	muted, err := r.store.IsMutedAuthor(ctx, username)
	if err != nil {
		return "", fmt.Errorf("check muted: %w", err)
	}
	if muted {
		if err := r.store.RemoveMutedAuthor(ctx, username); err != nil {
			return "", fmt.Errorf("remove muted: %w", err)
		}
		r.logger.Info("author unmuted", "author", username)
		return TransitionUnmuted, nil
	}

	if err := r.store.AddFavoriteAuthor(ctx, username); err != nil {
		return "", fmt.Errorf("add favorite: %w", err)
	}
	r.logger.Info("author favorited", "author", username)
	return TransitionFavorited, nil
}

// ToggleMute demotes an author toward muted, symmetric to ToggleFavorite.
func (r *TierResolver) ToggleMute(ctx context.Context, username string) (string, error) {
	username = NormalizeHandle(username)

	favorite, err := r.store.IsFavoriteAuthor(ctx, username)
	if err != nil {
		return "", fmt.Errorf("check favorite: %w", err)
	}
	if favorite {
		if err := r.store.RemoveFavoriteAuthor(ctx, username); err != nil {
			return "", fmt.Errorf("remove favorite: %w", err)
		}
		r.logger.Info("author unfavorited", "author", username)
		return TransitionUnfavorited, nil
	}

	if err := r.store.AddMutedAuthor(ctx, username); err != nil {
		return "", fmt.Errorf("add muted: %w", err)
	}
	r.logger.Info("author muted", "author", username)
	return TransitionMuted, nil
}
