package usecase

import (
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhl-labs/vibe-stats/internal/domain"
)

func commitAt(message string, date time.Time) *github.RepositoryCommit {
	commit := &github.Commit{Message: github.String(message)}
	if !date.IsZero() {
		commit.Author = &github.CommitAuthor{Date: &github.Timestamp{Time: date}}
	}
	return &github.RepositoryCommit{Commit: commit}
}

func TestAnalyzeCommitPatterns_Classification(t *testing.T) {
	testCases := []struct {
		message string
		want    func(domain.CommitPatternStat) int
	}{
		{"fix(auth): token expiry", func(p domain.CommitPatternStat) int { return p.Fix }},
		{"refactor!: redesign API", func(p domain.CommitPatternStat) int { return p.Refactor }},
		{"feat: add export", func(p domain.CommitPatternStat) int { return p.Feat }},
		{"Feat: uppercase type", func(p domain.CommitPatternStat) int { return p.Feat }},
		{"docs(readme): usage", func(p domain.CommitPatternStat) int { return p.Docs }},
		{"ci: pin actions", func(p domain.CommitPatternStat) int { return p.CI }},
		{"random commit message", func(p domain.CommitPatternStat) int { return p.Other }},
		{"perf: unknown type counts as other", func(p domain.CommitPatternStat) int { return p.Other }},
	}

	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			pattern := analyzeCommitPatterns([]*github.RepositoryCommit{commitAt(tc.message, time.Time{})})
			assert.Equal(t, 1, tc.want(pattern))
			assert.Equal(t, 1, pattern.Total)
		})
	}
}

func TestAnalyzeCommitPatterns_Histograms(t *testing.T) {
	// 2024-06-03 is a Monday, 2024-06-09 a Sunday.
	pattern := analyzeCommitPatterns([]*github.RepositoryCommit{
		commitAt("feat: a", time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC)),
		commitAt("feat: b", time.Date(2024, 6, 3, 9, 45, 0, 0, time.UTC)),
		commitAt("fix: c", time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)),
		commitAt("dateless", time.Time{}),
	})

	assert.Equal(t, 4, pattern.Total)
	assert.Equal(t, map[int]int{9: 2, 23: 1}, pattern.HourlyDistribution)
	assert.Equal(t, map[int]int{0: 2, 6: 1}, pattern.WeekdayDistribution)
}

func TestAnalyzePRInsights_Latencies(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	pr := func(author string, mergedAfter, closedAfter time.Duration, draft bool) *github.PullRequest {
		p := &github.PullRequest{
			User:      &github.User{Login: github.String(author)},
			CreatedAt: &github.Timestamp{Time: created},
			Draft:     github.Bool(draft),
		}
		if mergedAfter > 0 {
			p.MergedAt = &github.Timestamp{Time: created.Add(mergedAfter)}
		}
		if closedAfter > 0 {
			p.ClosedAt = &github.Timestamp{Time: created.Add(closedAfter)}
		}
		return p
	}

	insight := analyzePRInsights([]*github.PullRequest{
		pr("alice", 12*time.Hour, 0, false),
		pr("alice", 48*time.Hour, 0, true),
		pr("bob", 0, 6*time.Hour, false),
		pr("carol", 0, 0, false), // still open, no latency sample
	})

	assert.Equal(t, 4, insight.TotalAnalyzed)
	assert.Equal(t, 1, insight.DraftCount)
	require.NotNil(t, insight.AvgMergeHours)
	assert.Equal(t, 30.0, *insight.AvgMergeHours)
	require.NotNil(t, insight.MedianMergeHours)
	assert.Equal(t, 30.0, *insight.MedianMergeHours)
	require.NotNil(t, insight.AvgCloseHours)
	assert.Equal(t, 6.0, *insight.AvgCloseHours)
	assert.Equal(t, []domain.NameCount{
		{Name: "alice", Count: 2},
		{Name: "bob", Count: 1},
		{Name: "carol", Count: 1},
	}, insight.TopAuthors)
}

func TestAnalyzePRInsights_OddSampleMedian(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var prs []*github.PullRequest
	for _, hours := range []time.Duration{12, 24, 48} {
		prs = append(prs, &github.PullRequest{
			CreatedAt: &github.Timestamp{Time: created},
			MergedAt:  &github.Timestamp{Time: created.Add(hours * time.Hour)},
		})
	}

	insight := analyzePRInsights(prs)
	require.NotNil(t, insight.MedianMergeHours)
	assert.Equal(t, 24.0, *insight.MedianMergeHours)
	require.NotNil(t, insight.AvgMergeHours)
	assert.Equal(t, 28.0, *insight.AvgMergeHours)
}

func TestAnalyzePRInsights_Empty(t *testing.T) {
	insight := analyzePRInsights(nil)

	assert.Equal(t, 0, insight.TotalAnalyzed)
	assert.Nil(t, insight.AvgMergeHours)
	assert.Nil(t, insight.MedianMergeHours)
	assert.Nil(t, insight.AvgCloseHours)
	assert.Empty(t, insight.TopAuthors)
}

func TestAnalyzeIssueInsights(t *testing.T) {
	issue := func(reporter string, labels ...string) *github.Issue {
		i := &github.Issue{User: &github.User{Login: github.String(reporter)}}
		for _, l := range labels {
			i.Labels = append(i.Labels, &github.Label{Name: github.String(l)})
		}
		return i
	}

	insight := analyzeIssueInsights([]*github.Issue{
		issue("bob", "bug", "backend"),
		issue("bob", "bug"),
		issue("dave"),
	})

	assert.Equal(t, 3, insight.TotalAnalyzed)
	assert.Equal(t, map[string]int{"bug": 2, "backend": 1}, insight.LabelDistribution)
	assert.Equal(t, []domain.NameCount{
		{Name: "bob", Count: 2},
		{Name: "dave", Count: 1},
	}, insight.TopReporters)
}

func contributorWeeks(login string, weeks ...*github.WeeklyStats) *github.ContributorStats {
	return &github.ContributorStats{
		Author: &github.Contributor{Login: github.String(login)},
		Weeks:  weeks,
	}
}

func week(start time.Time, commits int) *github.WeeklyStats {
	return &github.WeeklyStats{
		Week:    &github.Timestamp{Time: start},
		Commits: github.Int(commits),
	}
}

func TestAnalyzeContributorTrends(t *testing.T) {
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	trends := analyzeContributorTrends([]*github.ContributorStats{
		contributorWeeks("alice",
			week(base, 3),
			week(base.AddDate(0, 0, 7), 0), // idle week, not active
			week(base.AddDate(0, 0, 21), 1),
		),
		contributorWeeks("bob", week(base, 2)),
		contributorWeeks("idle", week(base, 0)),
	}, nil, nil)

	require.Len(t, trends, 2)
	assert.Equal(t, domain.ContributorTrend{
		Username:        "alice",
		FirstActiveWeek: "2024-04-01",
		LastActiveWeek:  "2024-04-22",
		ActiveWeeks:     2,
		TotalWeeks:      4,
	}, trends[0])
	assert.Equal(t, domain.ContributorTrend{
		Username:        "bob",
		FirstActiveWeek: "2024-04-01",
		LastActiveWeek:  "2024-04-01",
		ActiveWeeks:     1,
		TotalWeeks:      1,
	}, trends[1])
}

func TestAnalyzeContributorTrends_WindowFilter(t *testing.T) {
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	since := base.AddDate(0, 0, 7)
	until := base.AddDate(0, 0, 14)

	trends := analyzeContributorTrends([]*github.ContributorStats{
		contributorWeeks("alice",
			week(base, 5),                 // ends exactly at since, out
			week(base.AddDate(0, 0, 7), 2),  // overlaps since, in
			week(base.AddDate(0, 0, 14), 1), // starts exactly at until, in
			week(base.AddDate(0, 0, 21), 9), // starts after until, out
		),
	}, &since, &until)

	require.Len(t, trends, 1)
	assert.Equal(t, "2024-04-08", trends[0].FirstActiveWeek)
	assert.Equal(t, "2024-04-15", trends[0].LastActiveWeek)
	assert.Equal(t, 2, trends[0].ActiveWeeks)
	assert.Equal(t, 2, trends[0].TotalWeeks)
}

func TestWeekInWindow(t *testing.T) {
	start := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	assert.True(t, weekInWindow(start, nil, nil))
	assert.False(t, weekInWindow(start, &end, nil), "week ending at since is out")
	assert.False(t, weekInWindow(end, nil, &start), "week starting after until is out")
	assert.True(t, weekInWindow(start, &start, &start))
}

func TestLanguageStats(t *testing.T) {
	languages := languageStats(map[string]int{"Python": 10000, "Go": 6000})

	require.Len(t, languages, 2)
	assert.Equal(t, domain.LanguageStat{Language: "Python", Bytes: 10000, Percentage: 62.5}, languages[0])
	assert.Equal(t, domain.LanguageStat{Language: "Go", Bytes: 6000, Percentage: 37.5}, languages[1])
}

func TestLanguageStats_ZeroTotal(t *testing.T) {
	languages := languageStats(map[string]int{"Go": 0})
	require.Len(t, languages, 1)
	assert.Equal(t, 0.0, languages[0].Percentage)
}

func TestTopCounts_TiesKeepFirstAppearance(t *testing.T) {
	counts := map[string]int{"a": 2, "b": 5, "c": 2}
	ranked := topCounts(counts, []string{"a", "b", "c"}, 10)
	assert.Equal(t, []domain.NameCount{
		{Name: "b", Count: 5},
		{Name: "a", Count: 2},
		{Name: "c", Count: 2},
	}, ranked)

	assert.Len(t, topCounts(counts, []string{"a", "b", "c"}, 2), 2)
}
