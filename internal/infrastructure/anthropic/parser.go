package anthropic

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/NIC619/personalized-twitter-feeds/internal/domain"
)

// triplePattern recovers well-formed score entries from otherwise
// unparsable responses, ignoring surrounding prose.
var triplePattern = regexp.MustCompile(`\{\s*"tweet_id"\s*:\s*"([^"]+)"\s*,\s*"score"\s*:\s*(\d+)\s*,\s*"reason"\s*:\s*"([^"]*)"\s*\}`)

// parseScores turns the raw model response into validated score entries.
// The ladder: strip code fences, strict JSON, repaired JSON, pattern
// scan. Exhausting the ladder yields an empty set, never an error.
func parseScores(raw string) []domain.ScoreResult {
	text := stripCodeFence(raw)

	if scores, ok := decodeScores(text); ok {
		return scores
	}

	if repaired, err := jsonrepair.JSONRepair(text); err == nil {
		if scores, ok := decodeScores(repaired); ok {
			return scores
		}
	}

	return scanTriples(raw)
}

// stripCodeFence removes a markdown code block wrapper if present.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func decodeScores(text string) ([]domain.ScoreResult, bool) {
	var items []struct {
		TweetID string      `json:"tweet_id"`
		Score   json.Number `json:"score"`
		Reason  string      `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}

	validated := make([]domain.ScoreResult, 0, len(items))
	for _, item := range items {
		if item.TweetID == "" {
			continue
		}
		score, err := item.Score.Float64()
		if err != nil {
			continue
		}
		reason := item.Reason
		if reason == "" {
			reason = "no reason provided"
		}
		validated = append(validated, domain.ScoreResult{
			TweetID: item.TweetID,
			Score:   clampScore(int(score)),
			Reason:  reason,
		})
	}
	return validated, true
}

func scanTriples(text string) []domain.ScoreResult {
	matches := triplePattern.FindAllStringSubmatch(text, -1)
	results := make([]domain.ScoreResult, 0, len(matches))
	for _, m := range matches {
		score := 0
		for _, ch := range m[2] {
			score = score*10 + int(ch-'0')
		}
		results = append(results, domain.ScoreResult{
			TweetID: m[1],
			Score:   clampScore(score),
			Reason:  m[3],
		})
	}
	return results
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
