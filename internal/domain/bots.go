package domain

import "strings"

// knownBots are automation accounts that do not carry the "[bot]" suffix.
var knownBots = map[string]struct{}{
	"dependabot":         {},
	"renovate":           {},
	"github-actions":     {},
	"codecov":            {},
	"snyk-bot":           {},
	"greenkeeper":        {},
	"dependabot-preview": {},
	"renovate-bot":       {},
	"allcontributors":    {},
	"imgbot":             {},
	"stale":              {},
	"mergify":            {},
	"sonarcloud":         {},
}

// IsBot reports whether a username belongs to a bot account. The check is
// case-insensitive and matches either the "[bot]" suffix or an exact known
// bot name, never a substring.
func IsBot(username string) bool {
	lower := strings.ToLower(username)
	if strings.HasSuffix(lower, "[bot]") {
		return true
	}
	_, ok := knownBots[lower]
	return ok
}

// Contributor sort keys accepted by SortKey.
const (
	SortByCommits   = "commits"
	SortByAdditions = "additions"
	SortByDeletions = "deletions"
	SortByLines     = "lines"
)

// SortKey returns the metric extractor for the given contributor sort key.
// Unknown keys fall back to commits.
func SortKey(sortBy string) func(ContributorStat) int {
	switch sortBy {
	case SortByAdditions:
		return func(c ContributorStat) int { return c.Additions }
	case SortByDeletions:
		return func(c ContributorStat) int { return c.Deletions }
	case SortByLines:
		return func(c ContributorStat) int { return c.Additions + c.Deletions }
	default:
		return func(c ContributorStat) int { return c.Commits }
	}
}
