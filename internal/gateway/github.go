// Package gateway provides a gateway to the GitHub REST API with bounded
// concurrency, pagination, rate-limit backoff, and response caching.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/jhl-labs/vibe-stats/internal/cache"
)

const (
	// defaultConcurrency bounds the number of in-flight API requests.
	defaultConcurrency = 5

	// defaultPerPage is the page size requested from list endpoints.
	defaultPerPage = 100

	// contributorStatsRetries bounds the 202 retry loop on the contributor
	// stats endpoint, which GitHub computes asynchronously.
	contributorStatsRetries = 8

	// requestTimeout bounds every individual network call.
	requestTimeout = 30 * time.Second
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	ListRepositories(ctx context.Context, org string, includeForks bool) ([]*github.Repository, error)
	ListCommits(ctx context.Context, owner, repo string, since, until *time.Time) ([]*github.RepositoryCommit, error)
	GetLanguages(ctx context.Context, owner, repo string) (map[string]int, error)
	GetContributorStats(ctx context.Context, owner, repo string) ([]*github.ContributorStats, error)
	ListPullRequests(ctx context.Context, owner, repo string, since, until *time.Time) ([]*github.PullRequest, error)
	ListIssues(ctx context.Context, owner, repo string, since *time.Time) ([]*github.Issue, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	client  *github.Client
	sem     *semaphore.Weighted
	monitor *RateLimitMonitor
	store   *cache.FileCache // nil disables caching
	logger  *zap.SugaredLogger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewGitHubGateway creates a gateway authenticated with token. baseURL is
// empty for github.com or the API root of an enterprise instance. store may
// be nil to disable response caching.
func NewGitHubGateway(token, baseURL string, store *cache.FileCache, logger *zap.SugaredLogger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Timeout: requestTimeout,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	client := github.NewClient(httpClient)
	if baseURL != "" {
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set enterprise base URL: %w", err)
		}
	}
	return &GitHubGateway{
		client:  client,
		sem:     semaphore.NewWeighted(defaultConcurrency),
		monitor: NewRateLimitMonitor(0),
		store:   store,
		logger:  logger,
		sleep:   sleepContext,
	}, nil
}

// do gates a single API call behind the permit pool and the rate monitor,
// then feeds the response quota signals back into the monitor.
func (g *GitHubGateway) do(ctx context.Context, call func() (*github.Response, error)) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if err := g.monitor.WaitIfNeeded(ctx); err != nil {
		return err
	}
	resp, err := call()
	if resp != nil {
		g.monitor.Update(resp.Rate)
	}
	return err
}

// httpStatus extracts the status code from a go-github error, or 0.
func httpStatus(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return 0
}

// ListRepositories lists repositories for an organization, falling back to
// the user endpoint when the account is not an organization. With
// includeForks false only source repositories are returned.
func (g *GitHubGateway) ListRepositories(ctx context.Context, org string, includeForks bool) ([]*github.Repository, error) {
	repoType := "sources"
	if includeForks {
		repoType = "all"
	}
	key := cache.Key("orgs/"+org+"/repos", map[string]string{"type": repoType, "sort": "updated"})
	var repos []*github.Repository
	if g.store != nil && g.store.Get(key, &repos) {
		return repos, nil
	}

	repos, err := g.listOrgRepositories(ctx, org, repoType)
	if httpStatus(err) == http.StatusNotFound {
		g.logger.Debugw("org not found, falling back to user endpoint", "account", org)
		repos, err = g.listUserRepositories(ctx, org, includeForks)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for %s: %w", org, err)
	}

	if g.store != nil {
		g.store.Set(key, repos)
	}
	return repos, nil
}

func (g *GitHubGateway) listOrgRepositories(ctx context.Context, org, repoType string) ([]*github.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type:        repoType,
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: defaultPerPage},
	}
	var all []*github.Repository
	for {
		var page []*github.Repository
		var resp *github.Response
		err := g.do(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = g.client.Repositories.ListByOrg(ctx, org, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// listUserRepositories is the 404 fallback. The user endpoint has no
// "sources" type filter, so forks are dropped client-side.
func (g *GitHubGateway) listUserRepositories(ctx context.Context, user string, includeForks bool) ([]*github.Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: defaultPerPage},
	}
	var all []*github.Repository
	for {
		var page []*github.Repository
		var resp *github.Response
		err := g.do(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = g.client.Repositories.ListByUser(ctx, user, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, repo := range page {
			if !includeForks && repo.GetFork() {
				continue
			}
			all = append(all, repo)
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListCommits lists commits for a repository within an optional time window.
// An empty repository (409) yields an empty list rather than an error.
func (g *GitHubGateway) ListCommits(ctx context.Context, owner, repo string, since, until *time.Time) ([]*github.RepositoryCommit, error) {
	params := map[string]string{}
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: defaultPerPage}}
	if since != nil {
		opts.Since = *since
		params["since"] = since.Format(time.RFC3339)
	}
	if until != nil {
		opts.Until = *until
		params["until"] = until.Format(time.RFC3339)
	}
	key := cache.Key(fmt.Sprintf("repos/%s/%s/commits", owner, repo), params)
	var commits []*github.RepositoryCommit
	if g.store != nil && g.store.Get(key, &commits) {
		return commits, nil
	}

	commits = commits[:0]
	for {
		var page []*github.RepositoryCommit
		var resp *github.Response
		err := g.do(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = g.client.Repositories.ListCommits(ctx, owner, repo, opts)
			return resp, err
		})
		if httpStatus(err) == http.StatusConflict {
			// Repository has no commits yet.
			return []*github.RepositoryCommit{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list commits for %s/%s: %w", owner, repo, err)
		}
		commits = append(commits, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if g.store != nil {
		g.store.Set(key, commits)
	}
	return commits, nil
}

// GetLanguages returns the language name to byte count mapping for a repository.
func (g *GitHubGateway) GetLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	key := cache.Key(fmt.Sprintf("repos/%s/%s/languages", owner, repo), nil)
	var languages map[string]int
	if g.store != nil && g.store.Get(key, &languages) {
		return languages, nil
	}

	err := g.do(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		languages, resp, err = g.client.Repositories.ListLanguages(ctx, owner, repo)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get languages for %s/%s: %w", owner, repo, err)
	}

	if g.store != nil {
		g.store.Set(key, languages)
	}
	return languages, nil
}

// GetContributorStats returns weekly contributor statistics. GitHub computes
// these asynchronously: a 202 response is retried with exponential backoff,
// and both a 204 and exhausted retries degrade to an empty list. Only
// non-empty results are cached since an empty one may reflect a computation
// that is still settling.
func (g *GitHubGateway) GetContributorStats(ctx context.Context, owner, repo string) ([]*github.ContributorStats, error) {
	key := cache.Key(fmt.Sprintf("repos/%s/%s/stats/contributors", owner, repo), nil)
	var contributors []*github.ContributorStats
	if g.store != nil && g.store.Get(key, &contributors) {
		return contributors, nil
	}

	for attempt := 0; attempt < contributorStatsRetries; attempt++ {
		contributors = nil
		err := g.do(ctx, func() (*github.Response, error) {
			var resp *github.Response
			var err error
			contributors, resp, err = g.client.Repositories.ListContributorsStats(ctx, owner, repo)
			return resp, err
		})
		if err != nil {
			var accepted *github.AcceptedError
			if errors.As(err, &accepted) {
				delay := backoffDelay(attempt)
				g.logger.Debugw("contributor stats pending, retrying",
					"repo", owner+"/"+repo, "attempt", attempt+1, "delay", delay)
				if serr := g.sleep(ctx, delay); serr != nil {
					return nil, serr
				}
				continue
			}
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				// Non-list payload, treat as no data.
				return []*github.ContributorStats{}, nil
			}
			return nil, fmt.Errorf("failed to get contributor stats for %s/%s: %w", owner, repo, err)
		}
		// A 204 decodes to an empty list; either way this is a final answer.
		if len(contributors) > 0 && g.store != nil {
			g.store.Set(key, contributors)
		}
		return contributors, nil
	}

	g.logger.Debugw("contributor stats still pending after retries", "repo", owner+"/"+repo)
	return []*github.ContributorStats{}, nil
}

// backoffDelay computes the 202 retry delay: min(2^(attempt+1), 30) seconds.
func backoffDelay(attempt int) time.Duration {
	seconds := 1 << (attempt + 1)
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// ListPullRequests lists pull requests in all states, newest first, filtered
// client-side to the [since, until] creation-time window because the endpoint
// does not support this filter natively.
func (g *GitHubGateway) ListPullRequests(ctx context.Context, owner, repo string, since, until *time.Time) ([]*github.PullRequest, error) {
	params := map[string]string{"state": "all"}
	if since != nil {
		params["since"] = since.Format(time.RFC3339)
	}
	if until != nil {
		params["until"] = until.Format(time.RFC3339)
	}
	key := cache.Key(fmt.Sprintf("repos/%s/%s/pulls", owner, repo), params)
	var prs []*github.PullRequest
	if g.store != nil && g.store.Get(key, &prs) {
		return prs, nil
	}

	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: defaultPerPage},
	}
	prs = prs[:0]
	for {
		var page []*github.PullRequest
		var resp *github.Response
		err := g.do(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = g.client.PullRequests.List(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests for %s/%s: %w", owner, repo, err)
		}

		pastWindow := false
		for _, pr := range page {
			created := pr.GetCreatedAt().Time
			if since != nil && created.Before(*since) {
				// Pages are created-desc, so everything after this is older.
				pastWindow = true
				continue
			}
			if until != nil && created.After(*until) {
				continue
			}
			prs = append(prs, pr)
		}
		if pastWindow || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if g.store != nil {
		g.store.Set(key, prs)
	}
	return prs, nil
}

// ListIssues lists open issues for a repository. GitHub issue endpoints
// include pull requests in their results; those are excluded here.
func (g *GitHubGateway) ListIssues(ctx context.Context, owner, repo string, since *time.Time) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: defaultPerPage},
	}
	if since != nil {
		opts.Since = *since
	}

	var issues []*github.Issue
	for {
		var page []*github.Issue
		var resp *github.Response
		err := g.do(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = g.client.Issues.ListByRepo(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list issues for %s/%s: %w", owner, repo, err)
		}
		for _, issue := range page {
			if issue.IsPullRequest() {
				continue
			}
			issues = append(issues, issue)
		}
		if resp.NextPage == 0 {
			return issues, nil
		}
		opts.Page = resp.NextPage
	}
}
