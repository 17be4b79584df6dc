package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// ControlVariant names the variant under which primary scores are stored.
const ControlVariant = "control"

// ShadowScorer re-scores a survivor batch with a challenger prompt purely
// for offline comparison. It persists both the primary scores and the
// challenger scores against the experiment identifier and never alters
// delivery decisions.
type ShadowScorer struct {
	scorer       ports.Scorer
	store        ports.Store
	experimentID string
	challenger   string
	logger       *slog.Logger
}

// NewShadowScorer wires the shadow evaluation harness. Returns nil when
// no experiment is configured; the orchestrator treats nil as disabled.
func NewShadowScorer(scorer ports.Scorer, store ports.Store, experimentID, challenger string, logger *slog.Logger) *ShadowScorer {
	if experimentID == "" || challenger == "" {
		return nil
	}
	return &ShadowScorer{
		scorer:       scorer,
		store:        store,
		experimentID: experimentID,
		challenger:   challenger,
		logger:       logger,
	}
}

// Evaluate persists the control scores and produces and persists the
// challenger scores over the same batch, reusing the already-assembled
// context block. Any error is returned for the caller to record as a
// non-fatal run note; it must never escalate past the orchestrator.
func (s *ShadowScorer) Evaluate(ctx context.Context, tweets []domain.Tweet, ragContext string, control []domain.ScoreResult) error {
	if len(tweets) == 0 {
		return nil
	}

	if err := s.store.SaveExperimentScores(ctx, s.experimentID, ControlVariant, control); err != nil {
		return fmt.Errorf("save control scores: %w", err)
	}

	challenger, err := s.scorer.ScoreWithPrompt(ctx, tweets, s.challenger, ragContext)
	if err != nil {
		return fmt.Errorf("challenger scoring (%s): %w", s.challenger, err)
	}
	if err := s.store.SaveExperimentScores(ctx, s.experimentID, s.challenger, challenger); err != nil {
		return fmt.Errorf("save challenger scores: %w", err)
	}

	s.logger.Info("shadow evaluation recorded",
		"experiment", s.experimentID,
		"challenger", s.challenger,
		"control_scores", len(control),
		"challenger_scores", len(challenger),
	)
	return nil
}
