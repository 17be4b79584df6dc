package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
	"github.com/NIC619/personalized-twitter-feeds/internal/usecase"
)

const pollTimeoutSeconds = 50

// Router consumes bot updates and drives the feedback flows: vote and
// reason keyboards, undo within the grace window, author tier toggles
// and the read-only commands.
type Router struct {
	bot      *Bot
	feedback *usecase.FeedbackMachine
	tiers    *usecase.TierResolver
	stats    *usecase.AuthorStats
	store    ports.Store
}

// NewRouter wires the update handlers.
func NewRouter(bot *Bot, feedback *usecase.FeedbackMachine, tiers *usecase.TierResolver, stats *usecase.AuthorStats, store ports.Store) *Router {
	return &Router{
		bot:      bot,
		feedback: feedback,
		tiers:    tiers,
		stats:    stats,
		store:    store,
	}
}

type apiCallback struct {
	ID      string      `json:"id"`
	Data    string      `json:"data"`
	Message *apiMessage `json:"message"`
}

type apiUpdate struct {
	UpdateID int64        `json:"update_id"`
	Message  *apiMessage  `json:"message"`
	Callback *apiCallback `json:"callback_query"`
}

// Run long-polls getUpdates until the context is cancelled. Handler
// errors are logged and never stop the loop.
func (r *Router) Run(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := r.poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.bot.logger.Error("poll updates failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if err := r.dispatch(ctx, update); err != nil {
				r.bot.logger.Error("update handling failed", "update", update.UpdateID, "error", err)
			}
		}
	}
}

func (r *Router) poll(ctx context.Context, offset int64) ([]apiUpdate, error) {
	payload := map[string]any{
		"timeout":         pollTimeoutSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	var updates []apiUpdate
	if err := r.bot.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (r *Router) dispatch(ctx context.Context, update apiUpdate) error {
	switch {
	case update.Callback != nil:
		return r.handleCallback(ctx, update)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		return r.handleCommand(ctx, update.Message.Text)
	default:
		return nil
	}
}

func (r *Router) handleCallback(ctx context.Context, update apiUpdate) error {
	cb := update.Callback
	var messageID int64
	if cb.Message != nil {
		messageID = cb.Message.MessageID
	}

	parts := strings.Split(cb.Data, ":")
	var ack string
	var err error

	switch parts[0] {
	case "vote":
		ack, err = r.handleVote(ctx, parts, messageID)
	case "reason":
		ack, err = r.handleReason(ctx, parts, messageID)
	case "undo":
		ack, err = r.handleUndo(ctx, parts, messageID)
	case "fav":
		ack, err = r.handleTierToggle(ctx, parts, r.tiers.ToggleFavorite)
	case "mute":
		ack, err = r.handleTierToggle(ctx, parts, r.tiers.ToggleMute)
	default:
		ack = "unknown action"
	}
	if err != nil {
		// Still acknowledge so the client stops its spinner.
		r.bot.answerCallback(ctx, cb.ID, "something went wrong")
		return err
	}
	return r.bot.answerCallback(ctx, cb.ID, ack)
}

// handleVote swaps the vote keyboard for the reason picker.
func (r *Router) handleVote(ctx context.Context, parts []string, messageID int64) (string, error) {
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed vote callback %v", parts)
	}
	tweetID, vote := parts[1], parts[2]
	if err := domain.ValidateVote(vote); err != nil {
		return "", err
	}
	if err := r.bot.editReplyMarkup(ctx, messageID, reasonKeyboard(tweetID, vote)); err != nil {
		return "", err
	}
	return "pick a reason", nil
}

// handleReason stages the vote with its note and shows the undo button.
func (r *Router) handleReason(ctx context.Context, parts []string, messageID int64) (string, error) {
	if len(parts) != 4 {
		return "", fmt.Errorf("malformed reason callback %v", parts)
	}
	tweetID, vote, code := parts[1], parts[2], parts[3]

	notes := ""
	if code != "skip" {
		notes = reasonCodes[code]
	}

	text := ""
	if stored, err := r.store.GetTweet(ctx, tweetID); err == nil && stored != nil {
		text = stored.Tweet.Text
	}

	if err := r.feedback.Stage(tweetID, vote, notes, text, messageID); err != nil {
		return "", err
	}
	if err := r.bot.editReplyMarkup(ctx, messageID, undoKeyboard(tweetID)); err != nil {
		return "", err
	}
	return "vote recorded", nil
}

// handleUndo cancels a pending vote; once committed it reports too late.
func (r *Router) handleUndo(ctx context.Context, parts []string, messageID int64) (string, error) {
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed undo callback %v", parts)
	}
	tweetID := parts[1]

	if r.feedback.Undo(tweetID) == usecase.UndoTooLate {
		return "too late, vote already saved", nil
	}

	stored, err := r.store.GetTweet(ctx, tweetID)
	if err == nil && stored != nil {
		scored := domain.ScoredTweet{Tweet: stored.Tweet}
		if err := r.bot.editReplyMarkup(ctx, messageID, voteKeyboard(scored)); err != nil {
			return "", err
		}
	}
	return "vote cancelled", nil
}

func (r *Router) handleTierToggle(ctx context.Context, parts []string, toggle func(context.Context, string) (string, error)) (string, error) {
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed toggle callback %v", parts)
	}
	transition, err := toggle(ctx, parts[1])
	if err != nil {
		return "", err
	}
	return "@" + usecase.NormalizeHandle(parts[1]) + " " + transition, nil
}

func (r *Router) handleCommand(ctx context.Context, text string) error {
	command := strings.Fields(text)[0]
	switch command {
	case "/stats":
		stats, err := r.stats.Compute(ctx)
		if err != nil {
			return err
		}
		_, err = r.bot.sendMessage(ctx, formatStats(stats), nil)
		return err
	case "/starred":
		authors, err := r.store.FavoriteAuthors(ctx)
		if err != nil {
			return err
		}
		_, err = r.bot.sendMessage(ctx, formatStarred(authors), nil)
		return err
	default:
		return nil
	}
}
