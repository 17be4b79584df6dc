package nitter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// Source scrapes Nitter timeline pages. It is the keyless fallback when
// no Twitter API token is configured; "recent" means the union of the
// configured handles' timelines.
type Source struct {
	baseURL string
	handles []string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.TweetSource = (*Source)(nil)

// NewSource wires an HTTP client over the configured Nitter instance.
func NewSource(cfg config.NitterConfig, client *http.Client, logger *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Source{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		handles: cfg.Handles,
		client:  client,
		logger:  logger,
	}
}

// FetchRecent walks every configured handle's timeline.
func (s *Source) FetchRecent(ctx context.Context, maxItems, hours int) ([]domain.Tweet, error) {
	if len(s.handles) == 0 {
		return nil, fmt.Errorf("no nitter handles configured")
	}
	perHandle := maxItems / len(s.handles)
	if perHandle < 1 {
		perHandle = 1
	}
	return s.FetchForAuthors(ctx, s.handles, perHandle, hours)
}

// FetchForAuthors scrapes each handle's timeline page.
func (s *Source) FetchForAuthors(ctx context.Context, handles []string, maxPerAuthor, hours int) ([]domain.Tweet, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	results := make([]domain.Tweet, 0)
	seen := map[string]struct{}{}

	for _, handle := range handles {
		handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
		if handle == "" {
			continue
		}

		doc, err := s.fetchDocument(ctx, s.baseURL+"/"+url.PathEscape(handle))
		if err != nil {
			return nil, fmt.Errorf("handle @%s: %w", handle, err)
		}

		tweets := s.extractTweets(doc, handle, cutoff, maxPerAuthor)
		for _, tweet := range tweets {
			if _, ok := seen[tweet.ID]; ok {
				continue
			}
			seen[tweet.ID] = struct{}{}
			results = append(results, tweet)
		}
	}

	return results, nil
}

func (s *Source) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; feed-curator/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nitter returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (s *Source) extractTweets(doc *goquery.Document, handle string, cutoff time.Time, limit int) []domain.Tweet {
	var collected []domain.Tweet

	doc.Find(".timeline-item").EachWithBreak(func(i int, item *goquery.Selection) bool {
		if len(collected) >= limit {
			return false
		}

		tweet, err := parseTimelineItem(item, handle)
		if err != nil {
			s.logger.Debug("skipping timeline item", "handle", handle, "err", err)
			return true
		}

		if !tweet.CreatedAt.IsZero() && tweet.CreatedAt.Before(cutoff) {
			// Timelines are newest first; everything below is older still.
			return false
		}

		collected = append(collected, tweet)
		return true
	})

	return collected
}

func parseTimelineItem(item *goquery.Selection, handle string) (domain.Tweet, error) {
	var tweet domain.Tweet

	link := item.Find(".tweet-link").First()
	href, ok := link.Attr("href")
	if !ok {
		return tweet, fmt.Errorf("no tweet link")
	}
	id := tweetIDFromPath(href)
	if id == "" {
		return tweet, fmt.Errorf("no status id in %s", href)
	}

	username := strings.TrimPrefix(strings.TrimSpace(item.Find(".username").First().Text()), "@")
	if username == "" {
		username = handle
	}

	tweet = domain.Tweet{
		ID:             id,
		AuthorUsername: username,
		AuthorName:     strings.TrimSpace(item.Find(".fullname").First().Text()),
		Text:           strings.TrimSpace(item.Find(".tweet-content").First().Text()),
		URL:            fmt.Sprintf("https://twitter.com/%s/status/%s", username, id),
		IsRetweet:      item.Find(".retweet-header").Length() > 0,
	}

	if title, ok := item.Find(".tweet-date a").First().Attr("title"); ok {
		if parsed, err := time.Parse("Jan 2, 2006 · 3:04 PM MST", title); err == nil {
			tweet.CreatedAt = parsed.UTC()
		}
	}

	item.Find(".tweet-stats .tweet-stat").Each(func(_ int, stat *goquery.Selection) {
		count := parseStatCount(stat.Text())
		icon := stat.Find(".icon-container span").First()
		switch {
		case icon.HasClass("icon-heart"):
			tweet.Metrics.Likes = count
		case icon.HasClass("icon-retweet"):
			tweet.Metrics.Retweets = count
		case icon.HasClass("icon-comment"):
			tweet.Metrics.Replies = count
		}
	})

	if quote := item.Find(".quote").First(); quote.Length() > 0 {
		quotedAuthor := strings.TrimPrefix(strings.TrimSpace(quote.Find(".username").First().Text()), "@")
		quotedText := strings.TrimSpace(quote.Find(".quote-text").First().Text())
		if quotedAuthor != "" || quotedText != "" {
			tweet.Quoted = &domain.QuotedTweet{
				AuthorUsername: quotedAuthor,
				Text:           quotedText,
			}
		}
	}

	return tweet, nil
}

// tweetIDFromPath extracts the status id from hrefs like
// /user/status/1234567890#m.
func tweetIDFromPath(href string) string {
	idx := strings.Index(href, "/status/")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("/status/"):]
	if hash := strings.IndexByte(id, '#'); hash >= 0 {
		id = id[:hash]
	}
	return strings.TrimSpace(id)
}

// parseStatCount handles plain and abbreviated counts ("1,234", "12K").
func parseStatCount(text string) int {
	text = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "K"):
		multiplier = 1_000
		text = strings.TrimSuffix(text, "K")
	case strings.HasSuffix(text, "M"):
		multiplier = 1_000_000
		text = strings.TrimSuffix(text, "M")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}
