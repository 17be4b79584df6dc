package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

const contextPreviewLen = 120

// ContextAssembler builds the retrieval-augmented context block injected
// into the scoring prompt: previously-voted tweets similar to the current
// batch, split into liked and disliked lists.
//
// Every failure in this stage degrades to "no context"; assembling context
// must never abort a curation run.
type ContextAssembler struct {
	embedder ports.Embedder
	store    ports.Store
	limit    int
	logger   *slog.Logger
}

// NewContextAssembler wires the assembler. A nil embedder disables it.
func NewContextAssembler(embedder ports.Embedder, store ports.Store, limit int, logger *slog.Logger) *ContextAssembler {
	return &ContextAssembler{embedder: embedder, store: store, limit: limit, logger: logger}
}

// Assemble embeds the batch, retrieves store-side neighbors per vector,
// and renders the merged global top-K as a labeled context block. Returns
// "" when disabled, on any failure, or when no neighbors exist.
func (a *ContextAssembler) Assemble(ctx context.Context, tweets []domain.Tweet) string {
	if a == nil || a.embedder == nil || len(tweets) == 0 {
		return ""
	}

	texts := make([]string, len(tweets))
	for i, t := range tweets {
		texts[i] = t.Text
	}

	vectors, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		a.logger.Warn("rag: embedding failed, scoring without context", "error", err)
		return ""
	}

	merged := map[string]domain.SimilarTweet{}
	for _, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		neighbors, err := a.store.SimilarVoted(ctx, vec, a.limit)
		if err != nil {
			a.logger.Warn("rag: similarity lookup failed, scoring without context", "error", err)
			return ""
		}
		for _, n := range neighbors {
			if prev, ok := merged[n.TweetID]; !ok || n.Similarity > prev.Similarity {
				merged[n.TweetID] = n
			}
		}
	}
	if len(merged) == 0 {
		return ""
	}

	top := make([]domain.SimilarTweet, 0, len(merged))
	for _, n := range merged {
		top = append(top, n)
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Similarity > top[j].Similarity })
	if len(top) > a.limit {
		top = top[:a.limit]
	}

	return renderContext(top)
}

func renderContext(neighbors []domain.SimilarTweet) string {
	var liked, disliked []domain.SimilarTweet
	for _, n := range neighbors {
		if n.Vote == domain.VoteUp {
			liked = append(liked, n)
		} else {
			disliked = append(disliked, n)
		}
	}

	var b strings.Builder
	if len(liked) > 0 {
		b.WriteString("Tweets the user LIKED:\n")
		for _, n := range liked {
			fmt.Fprintf(&b, "- %q (similarity %.2f)\n", preview(n.Text), n.Similarity)
		}
	}
	if len(disliked) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Tweets the user DISLIKED:\n")
		for _, n := range disliked {
			fmt.Fprintf(&b, "- %q (similarity %.2f)\n", preview(n.Text), n.Similarity)
		}
	}
	return b.String()
}

func preview(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= contextPreviewLen {
		return text
	}
	return string(runes[:contextPreviewLen]) + "..."
}
