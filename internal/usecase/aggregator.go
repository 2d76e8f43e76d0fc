package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/go-github/v62/github"
	"go.uber.org/zap"

	"github.com/jhl-labs/vibe-stats/internal/domain"
	"github.com/jhl-labs/vibe-stats/internal/gateway"
)

// Aggregator drives per-repository collection over a repository set and
// merges the results into a single organization-level report.
type Aggregator struct {
	fetcher gateway.Fetcher
	logger  *zap.SugaredLogger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Options control one aggregation run.
type Options struct {
	Org          string
	Since        *time.Time
	Until        *time.Time
	IncludeForks bool
	Repo         string   // single-repository mode when non-empty
	ExcludeRepos []string // repository names dropped from the listed set
	SortBy       string   // contributor sort key, see domain.SortKey
	ExcludeBots  bool
	MinCommits   int
}

// Aggregate resolves the repository set, collects every repository
// concurrently, and merges the surviving results. Only repository-set
// resolution errors propagate; a failing repository is recorded in the
// report's failure list and excluded from every merge.
func (a *Aggregator) Aggregate(ctx context.Context, opts Options) (*domain.OrgReport, error) {
	var repos []*github.Repository
	if opts.Repo != "" {
		repos = []*github.Repository{{Name: github.String(opts.Repo)}}
	} else {
		listed, err := a.fetcher.ListRepositories(ctx, opts.Org, opts.IncludeForks)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve repository set: %w", err)
		}
		excluded := make(map[string]struct{}, len(opts.ExcludeRepos))
		for _, name := range opts.ExcludeRepos {
			excluded[name] = struct{}{}
		}
		for _, repo := range listed {
			if _, skip := excluded[repo.GetName()]; skip {
				continue
			}
			repos = append(repos, repo)
		}
	}

	a.logger.Infof("collecting stats for %d repos in %s", len(repos), opts.Org)

	// One collection per repository, all launched concurrently; the API
	// client's permit pool is the only throttle. Results keep input order.
	collected := make([]*domain.RepoStat, len(repos))
	failed := make([]bool, len(repos))
	var wg sync.WaitGroup
	for i, repo := range repos {
		wg.Add(1)
		go func(i int, repo *github.Repository) {
			defer wg.Done()
			name := repo.GetName()
			defer func() {
				if r := recover(); r != nil {
					a.logger.Warnf("failed to collect stats for %s/%s: %v", opts.Org, name, r)
					failed[i] = true
				}
			}()
			stat, err := a.collectRepoStats(ctx, opts.Org, name, opts.Since, opts.Until, repo)
			if err != nil {
				a.logger.Warnf("failed to collect stats for %s/%s: %v", opts.Org, name, err)
				failed[i] = true
				return
			}
			collected[i] = stat
		}(i, repo)
	}
	wg.Wait()

	repoStats := make([]*domain.RepoStat, 0, len(repos))
	failedRepos := []string{}
	for i, repo := range repos {
		switch {
		case failed[i]:
			failedRepos = append(failedRepos, repo.GetName())
		case collected[i] != nil:
			repoStats = append(repoStats, collected[i])
		}
	}

	return buildReport(repoStats, failedRepos, opts), nil
}

// sortContributors orders contributors descending by the chosen metric,
// keeping the prior order for ties.
func sortContributors(contributors []domain.ContributorStat, sortBy string) {
	key := domain.SortKey(sortBy)
	sort.SliceStable(contributors, func(i, j int) bool {
		return key(contributors[i]) > key(contributors[j])
	})
}

// buildReport merges collected RepoStats into one OrgReport. Every merge rule
// is associative and commutative over the input set, so the nondeterministic
// completion order of the collectors cannot change the result.
func buildReport(repoStats []*domain.RepoStat, failedRepos []string, opts Options) *domain.OrgReport {
	report := &domain.OrgReport{
		Org:          opts.Org,
		TotalRepos:   len(repoStats),
		Languages:    []domain.LanguageStat{},
		Contributors: []domain.ContributorStat{},
		Repos:        make([]domain.RepoStat, 0, len(repoStats)),
		FailedRepos:  failedRepos,
		CommitPatterns: domain.CommitPatternStat{
			HourlyDistribution:  map[int]int{},
			WeekdayDistribution: map[int]int{},
		},
		PRInsights: domain.PRInsight{TopAuthors: []domain.NameCount{}},
		IssueInsights: domain.IssueInsight{
			LabelDistribution: map[string]int{},
			TopReporters:      []domain.NameCount{},
		},
		ContributorTrends: []domain.ContributorTrend{},
	}
	if opts.Since != nil {
		report.PeriodStart = opts.Since.UTC().Format(time.RFC3339)
	}
	if opts.Until != nil {
		report.PeriodEnd = opts.Until.UTC().Format(time.RFC3339)
	}

	languageBytes := map[string]int{}
	contributorTotals := map[string]domain.ContributorStat{}
	var contributorOrder []string

	authorCounts := map[string]int{}
	var authorOrder []string
	reporterCounts := map[string]int{}
	var reporterOrder []string
	var mergeWeighted, closeWeighted []weightedAvg

	trendTotals := map[string]domain.ContributorTrend{}
	var trendOrder []string

	for _, r := range repoStats {
		report.Repos = append(report.Repos, *r)

		report.TotalCommits += r.TotalCommits
		report.TotalAdditions += r.TotalAdditions
		report.TotalDeletions += r.TotalDeletions
		report.TotalOpenPRs += r.OpenPRs
		report.TotalMergedPRs += r.MergedPRs
		report.TotalOpenIssues += r.OpenIssues
		report.TotalStars += r.Stars
		report.TotalForks += r.Forks
		if r.IsArchived {
			report.ArchivedRepos++
		}

		for _, lang := range r.Languages {
			languageBytes[lang.Language] += lang.Bytes
		}

		for _, c := range r.Contributors {
			existing, seen := contributorTotals[c.Username]
			if !seen {
				contributorOrder = append(contributorOrder, c.Username)
			}
			contributorTotals[c.Username] = domain.ContributorStat{
				Username:  c.Username,
				Commits:   existing.Commits + c.Commits,
				Additions: existing.Additions + c.Additions,
				Deletions: existing.Deletions + c.Deletions,
			}
		}

		mergeCommitPatterns(&report.CommitPatterns, r.CommitPatterns)

		report.PRInsights.TotalAnalyzed += r.PRInsights.TotalAnalyzed
		report.PRInsights.DraftCount += r.PRInsights.DraftCount
		for _, author := range r.PRInsights.TopAuthors {
			if _, seen := authorCounts[author.Name]; !seen {
				authorOrder = append(authorOrder, author.Name)
			}
			authorCounts[author.Name] += author.Count
		}
		if r.PRInsights.AvgMergeHours != nil {
			mergeWeighted = append(mergeWeighted, weightedAvg{*r.PRInsights.AvgMergeHours, r.PRInsights.TotalAnalyzed})
		}
		if r.PRInsights.AvgCloseHours != nil {
			closeWeighted = append(closeWeighted, weightedAvg{*r.PRInsights.AvgCloseHours, r.PRInsights.TotalAnalyzed})
		}

		report.IssueInsights.TotalAnalyzed += r.IssueInsights.TotalAnalyzed
		for label, count := range r.IssueInsights.LabelDistribution {
			report.IssueInsights.LabelDistribution[label] += count
		}
		for _, reporter := range r.IssueInsights.TopReporters {
			if _, seen := reporterCounts[reporter.Name]; !seen {
				reporterOrder = append(reporterOrder, reporter.Name)
			}
			reporterCounts[reporter.Name] += reporter.Count
		}

		for _, trend := range r.ContributorTrends {
			existing, seen := trendTotals[trend.Username]
			if !seen {
				trendOrder = append(trendOrder, trend.Username)
				trendTotals[trend.Username] = trend
				continue
			}
			trendTotals[trend.Username] = mergeTrends(existing, trend)
		}
	}

	report.Languages = languageStats(languageBytes)

	// Weighted latency means over each repo's (average, sample count) pair.
	// The org median is left nil: it cannot be derived from per-repo medians.
	if avg, ok := weightedMean(mergeWeighted); ok {
		report.PRInsights.AvgMergeHours = &avg
	}
	if avg, ok := weightedMean(closeWeighted); ok {
		report.PRInsights.AvgCloseHours = &avg
	}
	report.PRInsights.TopAuthors = topCounts(authorCounts, authorOrder, topN)
	report.IssueInsights.TopReporters = topCounts(reporterCounts, reporterOrder, topN)

	contributors := make([]domain.ContributorStat, 0, len(contributorOrder))
	for _, username := range contributorOrder {
		contributors = append(contributors, contributorTotals[username])
	}
	filtered := opts.ExcludeBots || opts.MinCommits > 0
	if opts.ExcludeBots {
		contributors = filterContributors(contributors, func(c domain.ContributorStat) bool {
			return !domain.IsBot(c.Username)
		})
	}
	if opts.MinCommits > 0 {
		contributors = filterContributors(contributors, func(c domain.ContributorStat) bool {
			return c.Commits >= opts.MinCommits
		})
	}
	sortContributors(contributors, opts.SortBy)
	report.Contributors = contributors

	// The trend list stays consistent with the filtered contributor set.
	surviving := map[string]struct{}{}
	for _, c := range contributors {
		surviving[c.Username] = struct{}{}
	}
	trends := make([]domain.ContributorTrend, 0, len(trendOrder))
	for _, username := range trendOrder {
		if filtered {
			if _, ok := surviving[username]; !ok {
				continue
			}
		}
		trends = append(trends, trendTotals[username])
	}
	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].ActiveWeeks > trends[j].ActiveWeeks
	})
	report.ContributorTrends = trends

	return report
}

func filterContributors(contributors []domain.ContributorStat, keep func(domain.ContributorStat) bool) []domain.ContributorStat {
	kept := contributors[:0]
	for _, c := range contributors {
		if keep(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

// mergeCommitPatterns adds src's counts and histograms into dst bucket-wise.
func mergeCommitPatterns(dst *domain.CommitPatternStat, src domain.CommitPatternStat) {
	dst.Feat += src.Feat
	dst.Fix += src.Fix
	dst.Refactor += src.Refactor
	dst.Docs += src.Docs
	dst.Test += src.Test
	dst.Chore += src.Chore
	dst.Style += src.Style
	dst.CI += src.CI
	dst.Other += src.Other
	dst.Total += src.Total
	for hour, count := range src.HourlyDistribution {
		dst.HourlyDistribution[hour] += count
	}
	for day, count := range src.WeekdayDistribution {
		dst.WeekdayDistribution[day] += count
	}
}

// mergeTrends combines two per-repo trend records for the same contributor.
// The span is recomputed from the merged date range and the summed active
// weeks are capped at that span; overlapping active weeks across repos can
// therefore be under-counted, which matches the per-repo records carrying
// only counts rather than individual week timestamps.
func mergeTrends(a, b domain.ContributorTrend) domain.ContributorTrend {
	first := a.FirstActiveWeek
	if b.FirstActiveWeek < first {
		first = b.FirstActiveWeek
	}
	last := a.LastActiveWeek
	if b.LastActiveWeek > last {
		last = b.LastActiveWeek
	}

	span := a.TotalWeeks
	if b.TotalWeeks > span {
		span = b.TotalWeeks
	}
	firstDay, errFirst := time.Parse(dayFormat, first)
	lastDay, errLast := time.Parse(dayFormat, last)
	if errFirst == nil && errLast == nil {
		span = int(lastDay.Sub(firstDay).Hours()/24)/7 + 1
		if span < 1 {
			span = 1
		}
	}

	active := a.ActiveWeeks + b.ActiveWeeks
	if active > span {
		active = span
	}

	return domain.ContributorTrend{
		Username:        a.Username,
		FirstActiveWeek: first,
		LastActiveWeek:  last,
		ActiveWeeks:     active,
		TotalWeeks:      span,
	}
}

// weightedAvg is one repository's latency average and its sample weight.
type weightedAvg struct {
	avg float64
	n   int
}

// weightedMean computes the latency-weighted mean rounded to one decimal;
// ok is false when no sample carries weight.
func weightedMean(samples []weightedAvg) (float64, bool) {
	totalWeight := 0
	sum := 0.0
	for _, s := range samples {
		sum += s.avg * float64(s.n)
		totalWeight += s.n
	}
	if totalWeight == 0 {
		return 0, false
	}
	return round1(sum / float64(totalWeight)), true
}
