// Package domain contains the core data structures and domain logic for the application.
package domain

// LanguageStat holds the byte count and share of one language within a scope.
type LanguageStat struct {
	Language   string  `json:"language"`
	Bytes      int     `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

// ContributorStat holds per-contributor totals, keyed by username within its scope.
type ContributorStat struct {
	Username  string `json:"username"`
	Commits   int    `json:"commits"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// CommitPatternStat counts commits by conventional-commit type and buckets
// them into hour-of-day and weekday (0=Monday) histograms.
type CommitPatternStat struct {
	Feat                int         `json:"feat"`
	Fix                 int         `json:"fix"`
	Refactor            int         `json:"refactor"`
	Docs                int         `json:"docs"`
	Test                int         `json:"test"`
	Chore               int         `json:"chore"`
	Style               int         `json:"style"`
	CI                  int         `json:"ci"`
	Other               int         `json:"other"`
	Total               int         `json:"total"`
	HourlyDistribution  map[int]int `json:"hourly_distribution"`
	WeekdayDistribution map[int]int `json:"weekday_distribution"`
}

// NameCount is an ordered (name, count) pair used by top-N rankings.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PRInsight holds pull request merge/close latency statistics.
// Latency averages and medians are nil when no valid sample exists.
type PRInsight struct {
	TotalAnalyzed    int         `json:"total_analyzed"`
	AvgMergeHours    *float64    `json:"avg_merge_hours"`
	MedianMergeHours *float64    `json:"median_merge_hours"`
	AvgCloseHours    *float64    `json:"avg_close_hours"`
	DraftCount       int         `json:"draft_count"`
	TopAuthors       []NameCount `json:"top_authors"`
}

// IssueInsight holds issue label distribution and reporter stats.
type IssueInsight struct {
	TotalAnalyzed     int            `json:"total_analyzed"`
	LabelDistribution map[string]int `json:"label_distribution"`
	TopReporters      []NameCount    `json:"top_reporters"`
}

// ContributorTrend describes one contributor's activity timeline. A week is
// active when it has nonzero commits, additions, or deletions.
type ContributorTrend struct {
	Username        string `json:"username"`
	FirstActiveWeek string `json:"first_active_week"`
	LastActiveWeek  string `json:"last_active_week"`
	ActiveWeeks     int    `json:"active_weeks"`
	TotalWeeks      int    `json:"total_weeks"`
}

// RepoStat aggregates everything collected for a single repository.
type RepoStat struct {
	Name              string             `json:"name"`
	FullName          string             `json:"full_name"`
	TotalCommits      int                `json:"total_commits"`
	TotalAdditions    int                `json:"total_additions"`
	TotalDeletions    int                `json:"total_deletions"`
	OpenPRs           int                `json:"open_prs"`
	MergedPRs         int                `json:"merged_prs"`
	OpenIssues        int                `json:"open_issues"`
	Languages         []LanguageStat     `json:"languages"`
	Contributors      []ContributorStat  `json:"contributors"`
	Stars             int                `json:"stars"`
	Forks             int                `json:"forks"`
	SizeKB            int                `json:"size_kb"`
	IsArchived        bool               `json:"is_archived"`
	PrimaryLanguage   string             `json:"primary_language"`
	Description       string             `json:"description"`
	CreatedAt         string             `json:"created_at"`
	PushedAt          string             `json:"pushed_at"`
	Visibility        string             `json:"visibility"`
	CommitPatterns    CommitPatternStat  `json:"commit_patterns"`
	PRInsights        PRInsight          `json:"pr_insights"`
	IssueInsights     IssueInsight       `json:"issue_insights"`
	ContributorTrends []ContributorTrend `json:"contributor_trends"`
}

// OrgReport is the merged result over all successfully collected repositories.
// TotalRepos counts collected repositories only; repositories whose collection
// failed are named in FailedRepos instead.
type OrgReport struct {
	Org               string             `json:"org"`
	PeriodStart       string             `json:"period_start"`
	PeriodEnd         string             `json:"period_end"`
	TotalRepos        int                `json:"total_repos"`
	TotalCommits      int                `json:"total_commits"`
	TotalAdditions    int                `json:"total_additions"`
	TotalDeletions    int                `json:"total_deletions"`
	TotalOpenPRs      int                `json:"total_open_prs"`
	TotalMergedPRs    int                `json:"total_merged_prs"`
	TotalOpenIssues   int                `json:"total_open_issues"`
	Languages         []LanguageStat     `json:"languages"`
	Contributors      []ContributorStat  `json:"contributors"`
	Repos             []RepoStat         `json:"repos"`
	FailedRepos       []string           `json:"failed_repos"`
	TotalStars        int                `json:"total_stars"`
	TotalForks        int                `json:"total_forks"`
	ArchivedRepos     int                `json:"archived_repos"`
	CommitPatterns    CommitPatternStat  `json:"commit_patterns"`
	PRInsights        PRInsight          `json:"pr_insights"`
	IssueInsights     IssueInsight       `json:"issue_insights"`
	ContributorTrends []ContributorTrend `json:"contributor_trends"`
}
