// Package usecase contains the business logic of the application.
package usecase

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/montanaflynn/stats"

	"github.com/jhl-labs/vibe-stats/internal/domain"
)

// conventionalCommitPattern matches a leading type word followed by a scope
// opener, a colon, or a breaking-change marker, e.g. "fix(auth):" or "feat!:".
var conventionalCommitPattern = regexp.MustCompile(`^(\w+)[(:!]`)

const (
	weekSeconds = 7 * 24 * 60 * 60
	dayFormat   = "2006-01-02"
	topN        = 10
)

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// topCounts converts a count map into ordered (name, count) pairs, sorted
// descending by count with ties broken by first appearance in order, and
// truncated to n entries.
func topCounts(counts map[string]int, order []string, n int) []domain.NameCount {
	ranked := make([]domain.NameCount, 0, len(order))
	for _, name := range order {
		ranked = append(ranked, domain.NameCount{Name: name, Count: counts[name]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// analyzeCommitPatterns classifies commit messages by conventional-commit
// type and buckets author dates into hourly and weekday histograms. Commits
// with missing dates contribute to type counts only.
func analyzeCommitPatterns(commits []*github.RepositoryCommit) domain.CommitPatternStat {
	pattern := domain.CommitPatternStat{
		Total:               len(commits),
		HourlyDistribution:  map[int]int{},
		WeekdayDistribution: map[int]int{},
	}

	for _, commit := range commits {
		message := commit.GetCommit().GetMessage()
		bucket := &pattern.Other
		if m := conventionalCommitPattern.FindStringSubmatch(message); m != nil {
			switch strings.ToLower(m[1]) {
			case "feat":
				bucket = &pattern.Feat
			case "fix":
				bucket = &pattern.Fix
			case "refactor":
				bucket = &pattern.Refactor
			case "docs":
				bucket = &pattern.Docs
			case "test":
				bucket = &pattern.Test
			case "chore":
				bucket = &pattern.Chore
			case "style":
				bucket = &pattern.Style
			case "ci":
				bucket = &pattern.CI
			}
		}
		*bucket++

		date := commit.GetCommit().GetAuthor().GetDate().Time
		if date.IsZero() {
			continue
		}
		utc := date.UTC()
		pattern.HourlyDistribution[utc.Hour()]++
		// time.Weekday starts at Sunday; shift so Monday is 0.
		pattern.WeekdayDistribution[(int(utc.Weekday())+6)%7]++
	}

	return pattern
}

// analyzePRInsights computes merge/close latency statistics and author
// rankings over a set of pull requests. Negative latencies are discarded.
func analyzePRInsights(prs []*github.PullRequest) domain.PRInsight {
	insight := domain.PRInsight{
		TotalAnalyzed: len(prs),
		TopAuthors:    []domain.NameCount{},
	}

	var mergeHours, closeHours []float64
	authorCounts := map[string]int{}
	var authorOrder []string

	for _, pr := range prs {
		if pr.GetDraft() {
			insight.DraftCount++
		}
		if login := pr.GetUser().GetLogin(); login != "" {
			if _, seen := authorCounts[login]; !seen {
				authorOrder = append(authorOrder, login)
			}
			authorCounts[login]++
		}

		created := pr.GetCreatedAt().Time
		if created.IsZero() {
			continue
		}
		merged := pr.GetMergedAt().Time
		if !merged.IsZero() {
			if hours := merged.Sub(created).Hours(); hours >= 0 {
				mergeHours = append(mergeHours, hours)
			}
			continue
		}
		closed := pr.GetClosedAt().Time
		if !closed.IsZero() {
			if hours := closed.Sub(created).Hours(); hours >= 0 {
				closeHours = append(closeHours, hours)
			}
		}
	}

	if len(mergeHours) > 0 {
		if mean, err := stats.Mean(mergeHours); err == nil {
			avg := round1(mean)
			insight.AvgMergeHours = &avg
		}
		if median, err := stats.Median(mergeHours); err == nil {
			med := round1(median)
			insight.MedianMergeHours = &med
		}
	}
	if len(closeHours) > 0 {
		if mean, err := stats.Mean(closeHours); err == nil {
			avg := round1(mean)
			insight.AvgCloseHours = &avg
		}
	}

	insight.TopAuthors = topCounts(authorCounts, authorOrder, topN)
	return insight
}

// analyzeIssueInsights computes the label frequency and reporter ranking
// across a set of issues.
func analyzeIssueInsights(issues []*github.Issue) domain.IssueInsight {
	insight := domain.IssueInsight{
		TotalAnalyzed:     len(issues),
		LabelDistribution: map[string]int{},
		TopReporters:      []domain.NameCount{},
	}

	reporterCounts := map[string]int{}
	var reporterOrder []string

	for _, issue := range issues {
		for _, label := range issue.Labels {
			if name := label.GetName(); name != "" {
				insight.LabelDistribution[name]++
			}
		}
		if login := issue.GetUser().GetLogin(); login != "" {
			if _, seen := reporterCounts[login]; !seen {
				reporterOrder = append(reporterOrder, login)
			}
			reporterCounts[login]++
		}
	}

	insight.TopReporters = topCounts(reporterCounts, reporterOrder, topN)
	return insight
}

// weekInWindow reports whether a weekly bucket overlaps the [since, until]
// window. A week is out when its 7-day span ends at or before since, or when
// it starts after until.
func weekInWindow(weekStart time.Time, since, until *time.Time) bool {
	if since != nil && !weekStart.Add(weekSeconds*time.Second).After(*since) {
		return false
	}
	if until != nil && weekStart.After(*until) {
		return false
	}
	return true
}

// analyzeContributorTrends derives per-contributor activity timelines from
// weekly stats, restricted to the requested window. Contributors with no
// active weeks are skipped; the result is sorted by active weeks descending.
func analyzeContributorTrends(contributors []*github.ContributorStats, since, until *time.Time) []domain.ContributorTrend {
	trends := []domain.ContributorTrend{}

	for _, c := range contributors {
		login := c.GetAuthor().GetLogin()
		if login == "" {
			continue
		}

		var active []time.Time
		for _, week := range c.Weeks {
			start := week.GetWeek().Time
			if !weekInWindow(start, since, until) {
				continue
			}
			if week.GetCommits() > 0 || week.GetAdditions() > 0 || week.GetDeletions() > 0 {
				active = append(active, start)
			}
		}
		if len(active) == 0 {
			continue
		}

		first, last := active[0], active[0]
		for _, ts := range active[1:] {
			if ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
		}
		span := int(last.Sub(first)/(weekSeconds*time.Second)) + 1
		if span < 1 {
			span = 1
		}

		trends = append(trends, domain.ContributorTrend{
			Username:        login,
			FirstActiveWeek: first.UTC().Format(dayFormat),
			LastActiveWeek:  last.UTC().Format(dayFormat),
			ActiveWeeks:     len(active),
			TotalWeeks:      span,
		})
	}

	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].ActiveWeeks > trends[j].ActiveWeeks
	})
	return trends
}

// languageStats turns a language byte-count mapping into percentage records
// sorted descending by byte count (ties by name for determinism).
func languageStats(byteTotals map[string]int) []domain.LanguageStat {
	total := 0
	for _, b := range byteTotals {
		total += b
	}

	languages := make([]domain.LanguageStat, 0, len(byteTotals))
	for name, b := range byteTotals {
		pct := 0.0
		if total > 0 {
			pct = round1(float64(b) / float64(total) * 100)
		}
		languages = append(languages, domain.LanguageStat{Language: name, Bytes: b, Percentage: pct})
	}
	sort.Slice(languages, func(i, j int) bool {
		if languages[i].Bytes != languages[j].Bytes {
			return languages[i].Bytes > languages[j].Bytes
		}
		return languages[i].Language < languages[j].Language
	})
	return languages
}
