package nitter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NIC619/personalized-twitter-feeds/internal/config"
)

const timelineHTML = `
<div class="timeline">
  <div class="timeline-item">
    <a class="tweet-link" href="/alice/status/111#m"></a>
    <a class="fullname">Alice</a>
    <a class="username">@alice</a>
    <span class="tweet-date"><a title="Nov 8, 2025 · 7:23 PM UTC">Nov 8</a></span>
    <div class="tweet-content">Preconfirmation latency deep dive</div>
    <div class="tweet-stats">
      <span class="tweet-stat"><div class="icon-container"><span class="icon-comment"></span></div> 12</span>
      <span class="tweet-stat"><div class="icon-container"><span class="icon-retweet"></span></div> 1,234</span>
      <span class="tweet-stat"><div class="icon-container"><span class="icon-heart"></span></div> 5.6K</span>
    </div>
  </div>
  <div class="timeline-item">
    <div class="retweet-header">Alice retweeted</div>
    <a class="tweet-link" href="/bob/status/222#m"></a>
    <a class="fullname">Bob</a>
    <a class="username">@bob</a>
    <span class="tweet-date"><a title="Nov 8, 2025 · 6:00 PM UTC">Nov 8</a></span>
    <div class="tweet-content">Something reshared</div>
    <div class="quote">
      <a class="username">@carol</a>
      <div class="quote-text">quoted words</div>
    </div>
  </div>
</div>`

func testSource(baseURL string, handles ...string) *Source {
	return NewSource(config.NitterConfig{BaseURL: baseURL, Handles: handles},
		nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseTimelineItem(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(timelineHTML))
	require.NoError(t, err)

	items := doc.Find(".timeline-item")
	require.Equal(t, 2, items.Length())

	first, err := parseTimelineItem(items.First(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "111", first.ID)
	assert.Equal(t, "alice", first.AuthorUsername)
	assert.Equal(t, "Alice", first.AuthorName)
	assert.Equal(t, "Preconfirmation latency deep dive", first.Text)
	assert.Equal(t, "https://twitter.com/alice/status/111", first.URL)
	assert.Equal(t, 5600, first.Metrics.Likes)
	assert.Equal(t, 1234, first.Metrics.Retweets)
	assert.Equal(t, 12, first.Metrics.Replies)
	assert.False(t, first.IsRetweet)
	assert.Equal(t, time.Date(2025, time.November, 8, 19, 23, 0, 0, time.UTC), first.CreatedAt)

	second, err := parseTimelineItem(items.Last(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "222", second.ID)
	assert.True(t, second.IsRetweet)
	require.NotNil(t, second.Quoted)
	assert.Equal(t, "carol", second.Quoted.AuthorUsername)
	assert.Equal(t, "quoted words", second.Quoted.Text)
}

func TestFetchForAuthorsScrapesTimeline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alice", r.URL.Path)
		_, _ = w.Write([]byte(timelineHTML))
	}))
	defer server.Close()

	s := testSource(server.URL)
	tweets, err := s.FetchForAuthors(context.Background(), []string{"@alice"}, 10, 24*365*100)
	require.NoError(t, err)
	require.Len(t, tweets, 2)
	assert.Equal(t, "111", tweets[0].ID)
	assert.Equal(t, "222", tweets[1].ID)
}

func TestFetchForAuthorsRespectsCutoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(timelineHTML))
	}))
	defer server.Close()

	s := testSource(server.URL)
	// Both items date from 2025; a 1-hour lookback excludes them.
	tweets, err := s.FetchForAuthors(context.Background(), []string{"alice"}, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, tweets)
}

func TestFetchRecentRequiresHandles(t *testing.T) {
	t.Parallel()

	s := testSource("http://unused")
	_, err := s.FetchRecent(context.Background(), 10, 24)
	require.Error(t, err)
}

func TestTweetIDFromPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "123", tweetIDFromPath("/alice/status/123#m"))
	assert.Equal(t, "123", tweetIDFromPath("/alice/status/123"))
	assert.Empty(t, tweetIDFromPath("/alice/about"))
}

func TestParseStatCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, parseStatCount(""))
	assert.Equal(t, 42, parseStatCount(" 42 "))
	assert.Equal(t, 1234, parseStatCount("1,234"))
	assert.Equal(t, 5600, parseStatCount("5.6K"))
	assert.Equal(t, 2000000, parseStatCount("2M"))
}
