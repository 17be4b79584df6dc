package telegram

import (
	"fmt"
	"strings"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

// escapeHTML covers the characters Telegram's HTML parse mode reserves.
func escapeHTML(text string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(text)
}

// formatCount renders large counts the way clients abbreviate them.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1_000_000), ".0") + "M"
	case n >= 1_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1_000), ".0") + "K"
	default:
		return fmt.Sprintf("%d", n)
	}
}

func tierBadge(tier domain.Tier) string {
	switch tier {
	case domain.TierFavorite:
		return " ⭐"
	case domain.TierMuted:
		return " 🔇"
	default:
		return ""
	}
}

// formatTweet renders one curated tweet as a Telegram HTML message.
func formatTweet(t domain.ScoredTweet) string {
	var b strings.Builder

	name := t.Tweet.AuthorName
	if name == "" {
		name = t.Tweet.AuthorUsername
	}
	fmt.Fprintf(&b, "<b>%s</b> (@%s)%s\n", escapeHTML(name), escapeHTML(t.Tweet.AuthorUsername), tierBadge(t.Tier))
	fmt.Fprintf(&b, "<i>Score %d/100: %s</i>\n\n", t.Score, escapeHTML(t.Reason))
	b.WriteString(escapeHTML(t.Tweet.Text))
	b.WriteString("\n")

	if t.Tweet.Quoted != nil {
		fmt.Fprintf(&b, "\n💬 <b>@%s</b>: %s\n", escapeHTML(t.Tweet.Quoted.AuthorUsername), escapeHTML(t.Tweet.Quoted.Text))
	}

	fmt.Fprintf(&b, "\n❤️ %s  🔁 %s  💬 %s\n",
		formatCount(t.Tweet.Metrics.Likes),
		formatCount(t.Tweet.Metrics.Retweets),
		formatCount(t.Tweet.Metrics.Replies))
	fmt.Fprintf(&b, `<a href="%s">Open tweet</a>`, t.Tweet.URL)

	return b.String()
}

func formatDigestHeader(count int) string {
	if count == 0 {
		return "📭 No tweets passed the filter today."
	}
	noun := "tweets"
	if count == 1 {
		noun = "tweet"
	}
	return fmt.Sprintf("📬 <b>%d %s curated for you</b>", count, noun)
}

// formatStats renders the /stats reply, reputation highest first.
func formatStats(stats []domain.AuthorStat) string {
	if len(stats) == 0 {
		return "No votes recorded yet."
	}

	var b strings.Builder
	b.WriteString("<b>Author reputation</b>\n\n")
	for _, s := range stats {
		flag := ""
		if s.Favorite {
			flag = " ⭐"
		}
		if s.Muted {
			flag = " 🔇"
		}
		fmt.Fprintf(&b, "@%s%s: %.0f%% (👍 %d / 👎 %d)", escapeHTML(s.Username), flag, s.Reputation*100, s.UpVotes, s.DownVotes)
		if s.AvgScore > 0 {
			fmt.Fprintf(&b, ", avg score %.0f", s.AvgScore)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatStarred(authors []string) string {
	if len(authors) == 0 {
		return "No starred authors."
	}
	var b strings.Builder
	b.WriteString("<b>Starred authors</b>\n\n")
	for _, a := range authors {
		fmt.Fprintf(&b, "⭐ @%s\n", escapeHTML(a))
	}
	return b.String()
}

// inline keyboard wire types

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// voteKeyboard is attached to every delivered tweet.
func voteKeyboard(t domain.ScoredTweet) *inlineKeyboard {
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{
			{Text: "👍", CallbackData: "vote:" + t.Tweet.ID + ":" + domain.VoteUp},
			{Text: "👎", CallbackData: "vote:" + t.Tweet.ID + ":" + domain.VoteDown},
		},
		{
			{Text: "⭐ Author", CallbackData: "fav:" + t.Tweet.AuthorUsername + ":" + t.Tweet.ID},
			{Text: "🔇 Author", CallbackData: "mute:" + t.Tweet.AuthorUsername + ":" + t.Tweet.ID},
		},
	}}
}

// reasonCodes maps the short callback code to the note stored with the vote.
var reasonCodes = map[string]string{
	"topic":  "on-topic",
	"deep":   "technical depth",
	"author": "trusted author",
	"off":    "off-topic",
	"shill":  "engagement bait",
	"dup":    "already seen",
}

// reasonKeyboard replaces the vote keyboard once a direction is picked.
func reasonKeyboard(tweetID, vote string) *inlineKeyboard {
	prefix := "reason:" + tweetID + ":" + vote + ":"
	var rows [][]inlineButton
	if vote == domain.VoteUp {
		rows = [][]inlineButton{{
			{Text: "On topic", CallbackData: prefix + "topic"},
			{Text: "Deep dive", CallbackData: prefix + "deep"},
			{Text: "Author", CallbackData: prefix + "author"},
		}}
	} else {
		rows = [][]inlineButton{{
			{Text: "Off topic", CallbackData: prefix + "off"},
			{Text: "Bait", CallbackData: prefix + "shill"},
			{Text: "Seen it", CallbackData: prefix + "dup"},
		}}
	}
	rows = append(rows, []inlineButton{{Text: "Skip reason", CallbackData: prefix + "skip"}})
	return &inlineKeyboard{InlineKeyboard: rows}
}

// undoKeyboard is shown while the vote sits in its grace window.
func undoKeyboard(tweetID string) *inlineKeyboard {
	return &inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{{Text: "↩️ Undo", CallbackData: "undo:" + tweetID}},
	}}
}
