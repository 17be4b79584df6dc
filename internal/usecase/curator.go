package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// CuratorDeps wires all collaborators into the curation orchestrator.
type CuratorDeps struct {
	Source    ports.TweetSource
	Store     ports.Store
	Scorer    ports.Scorer
	Messenger ports.Messenger
	Tiers     *TierResolver
	Context   *ContextAssembler
	Shadow    *ShadowScorer
	Logger    *slog.Logger
}

// Curator sequences one curation run: fetch, dedup, retweet suppression,
// RAG context assembly, scoring, shadow evaluation, tiered decision,
// persistence and delivery.
type Curator struct {
	source     ports.TweetSource
	store      ports.Store
	scorer     ports.Scorer
	messenger  ports.Messenger
	tiers      *TierResolver
	assembler  *ContextAssembler
	shadow     *ShadowScorer
	fetchHours int
	maxTweets  int
	logger     *slog.Logger
}

// NewCurator constructs the orchestrator.
func NewCurator(deps CuratorDeps, fetchHours, maxTweets int) *Curator {
	return &Curator{
		source:     deps.Source,
		store:      deps.Store,
		scorer:     deps.Scorer,
		messenger:  deps.Messenger,
		tiers:      deps.Tiers,
		assembler:  deps.Context,
		shadow:     deps.Shadow,
		fetchHours: fetchHours,
		maxTweets:  maxTweets,
		logger:     deps.Logger,
	}
}

// Run executes one curation pass. Transport failures anywhere in the run
// are caught here, recorded into the returned stats and reported to the
// reader best-effort; Run never raises them further.
func (c *Curator) Run(ctx context.Context) *domain.RunStats {
	stats := domain.NewRunStats(time.Now().UTC())

	if err := c.curate(ctx, stats); err != nil {
		msg := fmt.Sprintf("curation error: %v", err)
		c.logger.Error("curation run failed", "error", err)
		stats.AddError(msg)

		if notifyErr := c.messenger.SendErrorNotification(ctx, msg); notifyErr != nil {
			c.logger.Error("error notification failed", "error", notifyErr)
		}
	}

	stats.CompletedAt = time.Now().UTC()
	c.logger.Info("curation run finished",
		"fetched", stats.Fetched,
		"new", stats.New,
		"skipped_duplicates", stats.SkippedDuplicates,
		"skipped_retweets", stats.SkippedRetweets,
		"scored", stats.Scored,
		"passed", stats.Passed,
		"sent", stats.Sent,
		"errors", len(stats.Errors),
	)
	return stats
}

func (c *Curator) curate(ctx context.Context, stats *domain.RunStats) error {
	tweets, err := c.source.FetchRecent(ctx, c.maxTweets, c.fetchHours)
	if err != nil {
		return fmt.Errorf("fetch timeline: %w", err)
	}
	stats.Fetched = len(tweets)
	if len(tweets) == 0 {
		c.logger.Info("no tweets to process")
		return nil
	}

	fresh, err := c.deduplicate(ctx, tweets)
	if err != nil {
		return fmt.Errorf("deduplicate: %w", err)
	}
	stats.New = len(fresh)
	stats.SkippedDuplicates = len(tweets) - len(fresh)
	if len(fresh) == 0 {
		c.logger.Info("no new tweets to process")
		return nil
	}

	sets, err := c.tiers.Load(ctx)
	if err != nil {
		return fmt.Errorf("load author tiers: %w", err)
	}

	survivors := suppressRetweets(fresh, sets)
	stats.SkippedRetweets = len(fresh) - len(survivors)
	if len(survivors) == 0 {
		c.logger.Info("no tweets remaining after retweet filter")
		return nil
	}

	ragContext := c.assembler.Assemble(ctx, survivors)
	if ragContext != "" {
		c.logger.Info("scoring with retrieval context")
	}

	results, err := c.scorer.Score(ctx, survivors, ragContext)
	if err != nil {
		return fmt.Errorf("score tweets: %w", err)
	}
	stats.Scored = len(results)
	c.logger.Info("scoring complete", "floor", c.tiers.Floor(), "scored", len(results), "batch", len(survivors))

	if c.shadow != nil {
		if err := c.shadow.Evaluate(ctx, survivors, ragContext, results); err != nil {
			c.logger.Error("shadow evaluation failed", "error", err)
			stats.AddError(fmt.Sprintf("shadow evaluation: %v", err))
		}
	}

	scored := c.applyTiers(survivors, results, sets, stats)

	var passed []domain.ScoredTweet
	for _, st := range scored {
		if st.State == domain.ScoreStatePassed {
			passed = append(passed, st)
		}
	}
	stats.Passed = len(passed)

	if err := c.persist(ctx, fresh, scored); err != nil {
		return fmt.Errorf("persist tweets: %w", err)
	}

	if len(passed) == 0 {
		c.logger.Info("no tweets passed their tier threshold")
		return nil
	}
	return c.deliver(ctx, passed, stats)
}

// deduplicate keeps tweets absent from the store or stored without a
// relevance score. A stored score marks a tweet processed for good, even
// if the prompt has changed since it was assigned.
func (c *Curator) deduplicate(ctx context.Context, tweets []domain.Tweet) ([]domain.Tweet, error) {
	fresh := make([]domain.Tweet, 0, len(tweets))
	for _, t := range tweets {
		existing, err := c.store.GetTweet(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup tweet %s: %w", t.ID, err)
		}
		if existing.Processed() {
			continue
		}
		fresh = append(fresh, t)
	}
	return fresh, nil
}

// suppressRetweets drops reshares from authors outside the favorite set
// before any scorer budget is spent on them.
func suppressRetweets(tweets []domain.Tweet, sets TierSets) []domain.Tweet {
	survivors := make([]domain.Tweet, 0, len(tweets))
	for _, t := range tweets {
		if t.IsRetweet && !sets.Favorite[NormalizeHandle(t.AuthorUsername)] {
			continue
		}
		survivors = append(survivors, t)
	}
	return survivors
}

// applyTiers resolves each survivor's tier threshold and decides pass or
// fail. Pure function of score and tier; items the scorer skipped default
// to score 0.
func (c *Curator) applyTiers(tweets []domain.Tweet, results []domain.ScoreResult, sets TierSets, stats *domain.RunStats) []domain.ScoredTweet {
	byID := make(map[string]domain.ScoreResult, len(results))
	for _, r := range results {
		byID[r.TweetID] = r
	}

	scored := make([]domain.ScoredTweet, 0, len(tweets))
	for _, t := range tweets {
		tier := sets.TierOf(t.AuthorUsername)
		threshold := c.tiers.Threshold(tier)
		stats.TierBreakdown[tier]++

		st := domain.ScoredTweet{
			Tweet:     t,
			Tier:      tier,
			Threshold: threshold,
		}
		if r, ok := byID[t.ID]; ok {
			st.Score = r.Score
			st.Reason = r.Reason
		} else {
			st.Score = 0
			st.Reason = "not scored"
		}
		if st.Score >= threshold {
			st.State = domain.ScoreStatePassed
		} else {
			st.State = domain.ScoreStateFailed
		}

		c.logger.Info("tier decision",
			"tier", tier,
			"author", t.AuthorUsername,
			"score", st.Score,
			"threshold", threshold,
			"passed", st.State == domain.ScoreStatePassed,
		)
		scored = append(scored, st)
	}
	return scored
}

// persist saves every new tweet, scored or not, so the next run's dedup
// sees unscored leftovers (suppressed retweets) as still unprocessed.
func (c *Curator) persist(ctx context.Context, fresh []domain.Tweet, scored []domain.ScoredTweet) error {
	merged := make(map[string]domain.ScoredTweet, len(fresh))
	for _, t := range fresh {
		merged[t.ID] = domain.ScoredTweet{Tweet: t, State: domain.ScoreStateUnscored}
	}
	for _, st := range scored {
		merged[st.Tweet.ID] = st
	}

	batch := make([]domain.ScoredTweet, 0, len(merged))
	for _, st := range merged {
		batch = append(batch, st)
	}
	return c.store.SaveTweets(ctx, batch)
}

// deliver sends the digest header and each passing tweet. A single
// message failure is a non-fatal note; marking is best-effort idempotent.
func (c *Curator) deliver(ctx context.Context, passed []domain.ScoredTweet, stats *domain.RunStats) error {
	if err := c.messenger.SendDigestHeader(ctx, len(passed)); err != nil {
		return fmt.Errorf("send digest header: %w", err)
	}

	for _, st := range passed {
		messageID, err := c.messenger.SendTweet(ctx, st)
		if err != nil {
			c.logger.Error("send tweet failed", "tweet", st.Tweet.ID, "error", err)
			stats.AddError(fmt.Sprintf("send tweet %s: %v", st.Tweet.ID, err))
			continue
		}
		if messageID == 0 {
			continue
		}
		stats.Sent++
		if err := c.store.MarkTweetSent(ctx, st.Tweet.ID, messageID); err != nil {
			c.logger.Error("mark sent failed", "tweet", st.Tweet.ID, "error", err)
			stats.AddError(fmt.Sprintf("mark sent %s: %v", st.Tweet.ID, err))
		}
	}
	return nil
}
