package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/sync/errgroup"

	"github.com/jhl-labs/vibe-stats/internal/domain"
)

// fetchWarning formats a compact diagnostic for a failed fetch. HTTP errors
// are reduced to their status line so log output stays free of request URLs.
func fetchWarning(err error) string {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code := errResp.Response.StatusCode
		return fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	return err.Error()
}

// collectRepoStats gathers the five per-repository signals concurrently and
// reduces them into one RepoStat. Each fetch fails independently: a failed
// fetch is logged and replaced with an empty value so the remaining four
// still contribute. The returned error is non-nil only when ctx was
// cancelled before the collection could finish.
func (a *Aggregator) collectRepoStats(ctx context.Context, owner, repoName string, since, until *time.Time, meta *github.Repository) (*domain.RepoStat, error) {
	var (
		commits      []*github.RepositoryCommit
		languages    map[string]int
		contributors []*github.ContributorStats
		prs          []*github.PullRequest
		issues       []*github.Issue
	)

	warn := func(api string, err error) {
		a.logger.Warnf("%s/%s %s: %s", owner, repoName, api, fetchWarning(err))
	}

	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		if commits, err = a.fetcher.ListCommits(ctx, owner, repoName, since, until); err != nil {
			warn("commits", err)
			commits = nil
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		if languages, err = a.fetcher.GetLanguages(ctx, owner, repoName); err != nil {
			warn("languages", err)
			languages = nil
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		if contributors, err = a.fetcher.GetContributorStats(ctx, owner, repoName); err != nil {
			warn("contributors", err)
			contributors = nil
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		if prs, err = a.fetcher.ListPullRequests(ctx, owner, repoName, since, until); err != nil {
			warn("pulls", err)
			prs = nil
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		if issues, err = a.fetcher.ListIssues(ctx, owner, repoName, since); err != nil {
			warn("issues", err)
			issues = nil
		}
		return nil
	})
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stat := &domain.RepoStat{
		Name:         repoName,
		FullName:     owner + "/" + repoName,
		TotalCommits: len(commits),
		OpenIssues:   len(issues),
		Languages:    languageStats(languages),
		Contributors: []domain.ContributorStat{},
	}

	// A PR with a merge timestamp is merged; an unmerged open PR is open;
	// closed-without-merge lands in neither bucket.
	for _, pr := range prs {
		switch {
		case !pr.GetMergedAt().Time.IsZero():
			stat.MergedPRs++
		case pr.GetState() == "open":
			stat.OpenPRs++
		}
	}

	for _, c := range contributors {
		login := c.GetAuthor().GetLogin()
		if login == "" {
			continue
		}
		var commitCount, additions, deletions int
		for _, week := range c.Weeks {
			if !weekInWindow(week.GetWeek().Time, since, until) {
				continue
			}
			commitCount += week.GetCommits()
			additions += week.GetAdditions()
			deletions += week.GetDeletions()
		}
		if commitCount == 0 && additions == 0 && deletions == 0 {
			continue
		}
		stat.TotalAdditions += additions
		stat.TotalDeletions += deletions
		stat.Contributors = append(stat.Contributors, domain.ContributorStat{
			Username:  login,
			Commits:   commitCount,
			Additions: additions,
			Deletions: deletions,
		})
	}
	sortContributors(stat.Contributors, domain.SortByCommits)

	stat.CommitPatterns = analyzeCommitPatterns(commits)
	stat.PRInsights = analyzePRInsights(prs)
	stat.IssueInsights = analyzeIssueInsights(issues)
	stat.ContributorTrends = analyzeContributorTrends(contributors, since, until)

	if meta != nil {
		stat.Stars = meta.GetStargazersCount()
		stat.Forks = meta.GetForksCount()
		stat.SizeKB = meta.GetSize()
		stat.IsArchived = meta.GetArchived()
		stat.PrimaryLanguage = meta.GetLanguage()
		stat.Description = meta.GetDescription()
		stat.Visibility = meta.GetVisibility()
		if created := meta.GetCreatedAt().Time; !created.IsZero() {
			stat.CreatedAt = created.UTC().Format(time.RFC3339)
		}
		if pushed := meta.GetPushedAt().Time; !pushed.IsZero() {
			stat.PushedAt = pushed.UTC().Format(time.RFC3339)
		}
	}

	return stat, nil
}
