package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// ScoreContext carries the seed information a discovered-link score is
// relative to.
type ScoreContext struct {
	SeedHost     string
	SeedKeywords []string
}

var interestingPathRe = regexp.MustCompile(`(?i)(docs|guide|blog|article|help|support|reference)`)

func pathSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// ScoreDiscoveredURL scores a newly discovered link for frontier priority.
// The result is always in [1, 150].
func ScoreDiscoveredURL(rawURL string, nextDepth int, ctx ScoreContext) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 1
	}

	score := 100

	if !strings.EqualFold(u.Host, ctx.SeedHost) {
		score -= 25
	}

	score -= 3 * len(pathSegments(u.Path))
	score -= 7 * nextDepth

	if u.RawQuery != "" {
		score -= 8
	}

	haystack := strings.ToLower(u.Host + u.Path)
	matches := 0
	for _, kw := range ctx.SeedKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matches++
		}
	}
	bonus := 4 * matches
	if bonus > 20 {
		bonus = 20
	}
	score += bonus

	if interestingPathRe.MatchString(u.Path) {
		score += 6
	}

	if score < 1 {
		score = 1
	}
	if score > 150 {
		score = 150
	}
	return score
}
