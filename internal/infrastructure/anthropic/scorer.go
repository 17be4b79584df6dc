package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

const apiVersion = "2023-06-01"

// Scorer implements ports.Scorer against the Anthropic messages API.
// Malformed output degrades through the parse ladder; transport errors
// propagate to the caller untouched.
type Scorer struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Scorer = (*Scorer)(nil)

// NewScorer builds a client from configuration.
func NewScorer(cfg config.AnthropicConfig, logger *slog.Logger) *Scorer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Scorer{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Score evaluates a batch with the production prompt, using the RAG
// variant when a context block is supplied.
func (s *Scorer) Score(ctx context.Context, tweets []domain.Tweet, ragContext string) ([]domain.ScoreResult, error) {
	key := "V1"
	if ragContext != "" {
		key = "V2"
	}
	return s.ScoreWithPrompt(ctx, tweets, key, ragContext)
}

// ScoreWithPrompt evaluates a batch with a named prompt variant from the
// registry, returning raw scores without threshold filtering.
func (s *Scorer) ScoreWithPrompt(ctx context.Context, tweets []domain.Tweet, promptKey, ragContext string) ([]domain.ScoreResult, error) {
	if len(tweets) == 0 {
		return nil, nil
	}

	template, ok := promptRegistry[promptKey]
	if !ok {
		return nil, fmt.Errorf("unknown prompt variant %q", promptKey)
	}

	payload, err := marshalBatch(tweets)
	if err != nil {
		return nil, fmt.Errorf("marshal tweet batch: %w", err)
	}
	prompt := renderPrompt(template, payload, ragContext)

	raw, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	scores := parseScores(raw)
	if len(scores) == 0 {
		s.logger.Warn("scorer returned no parsable scores", "prompt", promptKey, "batch", len(tweets))
	} else {
		s.logger.Info("scored batch", "prompt", promptKey, "scores", len(scores), "batch", len(tweets))
	}
	return scores, nil
}

// marshalBatch builds the compact per-item payload the prompt embeds.
func marshalBatch(tweets []domain.Tweet) (string, error) {
	type entry struct {
		TweetID  string              `json:"tweet_id"`
		Author   string              `json:"author"`
		Text     string              `json:"text"`
		Likes    int                 `json:"likes"`
		Retweets int                 `json:"retweets"`
		Quoted   *domain.QuotedTweet `json:"quoted_tweet,omitempty"`
	}

	entries := make([]entry, 0, len(tweets))
	for _, t := range tweets {
		entries = append(entries, entry{
			TweetID:  t.ID,
			Author:   t.AuthorUsername,
			Text:     t.Text,
			Likes:    t.Metrics.Likes,
			Retweets: t.Metrics.Retweets,
			Quoted:   t.Quoted,
		})
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Scorer) complete(ctx context.Context, prompt string) (string, error) {
	if s.apiKey == "" || s.endpoint == "" || s.model == "" {
		return "", fmt.Errorf("scorer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":       s.model,
		"max_tokens":  s.maxTokens,
		"temperature": 0.3,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("anthropic error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var decoded struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
