package twitterapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
	"github.com/NIC619/personalized-twitter-feeds/internal/ports"
)

// Client is a thin Twitter API v2 wrapper covering the reverse
// chronological home timeline and per-author timelines.
type Client struct {
	base       string
	bearer     string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.TweetSource = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.TwitterConfig, logger *slog.Logger) *Client {
	return &Client{
		base:   strings.TrimSuffix(cfg.APIBase, "/"),
		bearer: cfg.BearerToken,
		userID: cfg.UserID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

const tweetFields = "created_at,public_metrics,author_id,referenced_tweets"
const userFields = "username,name"
const expansions = "author_id,referenced_tweets.id,referenced_tweets.id.author_id"

// FetchRecent pulls the home timeline for the configured user.
func (c *Client) FetchRecent(ctx context.Context, maxItems, hours int) ([]domain.Tweet, error) {
	if c.userID == "" {
		return nil, fmt.Errorf("twitter user id not configured")
	}
	path := fmt.Sprintf("/2/users/%s/timelines/reverse_chronological", c.userID)
	return c.fetchTimeline(ctx, path, maxItems, hours)
}

// FetchForAuthors pulls each starred author's own timeline.
func (c *Client) FetchForAuthors(ctx context.Context, handles []string, maxPerAuthor, hours int) ([]domain.Tweet, error) {
	var all []domain.Tweet
	for _, handle := range handles {
		userID, err := c.lookupUser(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("lookup @%s: %w", handle, err)
		}
		tweets, err := c.fetchTimeline(ctx, fmt.Sprintf("/2/users/%s/tweets", userID), maxPerAuthor, hours)
		if err != nil {
			return nil, fmt.Errorf("timeline @%s: %w", handle, err)
		}
		all = append(all, tweets...)
	}
	return all, nil
}

func (c *Client) fetchTimeline(ctx context.Context, path string, maxItems, hours int) ([]domain.Tweet, error) {
	startTime := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	var tweets []domain.Tweet
	paginationToken := ""
	for len(tweets) < maxItems {
		batch := maxItems - len(tweets)
		if batch > 100 {
			batch = 100
		}

		query := url.Values{}
		query.Set("max_results", fmt.Sprintf("%d", batch))
		query.Set("start_time", startTime.Format(time.RFC3339))
		query.Set("tweet.fields", tweetFields)
		query.Set("user.fields", userFields)
		query.Set("expansions", expansions)
		if paginationToken != "" {
			query.Set("pagination_token", paginationToken)
		}

		page, nextToken, err := c.fetchPage(ctx, path, query)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, page...)

		if nextToken == "" || len(page) == 0 {
			break
		}
		paginationToken = nextToken
	}
	return tweets, nil
}

type apiTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		Likes    int `json:"like_count"`
		Retweets int `json:"retweet_count"`
		Replies  int `json:"reply_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (c *Client) fetchPage(ctx context.Context, path string, query url.Values) ([]domain.Tweet, string, error) {
	var decoded struct {
		Data     []apiTweet `json:"data"`
		Includes struct {
			Users  []apiUser  `json:"users"`
			Tweets []apiTweet `json:"tweets"`
		} `json:"includes"`
		Meta struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	if err := c.get(ctx, path+"?"+query.Encode(), &decoded); err != nil {
		return nil, "", err
	}

	users := map[string]apiUser{}
	for _, u := range decoded.Includes.Users {
		users[u.ID] = u
	}
	referenced := map[string]apiTweet{}
	for _, t := range decoded.Includes.Tweets {
		referenced[t.ID] = t
	}

	tweets := make([]domain.Tweet, 0, len(decoded.Data))
	for _, raw := range decoded.Data {
		author, ok := users[raw.AuthorID]
		if !ok {
			c.logger.Warn("no author in includes", "tweet", raw.ID)
			continue
		}
		tweets = append(tweets, normalize(raw, author, referenced, users))
	}
	return tweets, decoded.Meta.NextToken, nil
}

func normalize(raw apiTweet, author apiUser, referenced map[string]apiTweet, users map[string]apiUser) domain.Tweet {
	createdAt, _ := time.Parse(time.RFC3339, raw.CreatedAt)

	t := domain.Tweet{
		ID:             raw.ID,
		AuthorUsername: author.Username,
		AuthorName:     author.Name,
		Text:           raw.Text,
		URL:            fmt.Sprintf("https://twitter.com/%s/status/%s", author.Username, raw.ID),
		Metrics: domain.Metrics{
			Likes:    raw.PublicMetrics.Likes,
			Retweets: raw.PublicMetrics.Retweets,
			Replies:  raw.PublicMetrics.Replies,
		},
		CreatedAt: createdAt,
	}

	for _, ref := range raw.ReferencedTweets {
		switch ref.Type {
		case "retweeted":
			t.IsRetweet = true
		case "quoted":
			if quoted, ok := referenced[ref.ID]; ok {
				quotedAuthor := users[quoted.AuthorID]
				t.Quoted = &domain.QuotedTweet{
					AuthorUsername: quotedAuthor.Username,
					Text:           quoted.Text,
				}
			}
		}
	}
	return t
}

func (c *Client) lookupUser(ctx context.Context, handle string) (string, error) {
	var decoded struct {
		Data apiUser `json:"data"`
	}
	path := "/2/users/by/username/" + url.PathEscape(strings.TrimPrefix(handle, "@"))
	if err := c.get(ctx, path, &decoded); err != nil {
		return "", err
	}
	if decoded.Data.ID == "" {
		return "", fmt.Errorf("user %s not found", handle)
	}
	return decoded.Data.ID, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twitter error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
