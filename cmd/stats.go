// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhl-labs/vibe-stats/internal/cache"
	"github.com/jhl-labs/vibe-stats/internal/gateway"
	"github.com/jhl-labs/vibe-stats/internal/render"
	"github.com/jhl-labs/vibe-stats/internal/usecase"
)

const inputDateLayout = "2006-01-02"

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Collects GitHub activity statistics and renders a report",
	Long: `Collects activity statistics for every repository of a GitHub organization
(or a single repository with --repo) and renders the aggregated report in the
requested format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		org, _ := cmd.Flags().GetString("org")
		repo, _ := cmd.Flags().GetString("repo")
		excludeRepos, _ := cmd.Flags().GetStringSlice("exclude-repos")
		includeForks, _ := cmd.Flags().GetBool("include-forks")
		sortBy, _ := cmd.Flags().GetString("sort-by")
		excludeBots, _ := cmd.Flags().GetBool("exclude-bots")
		minCommits, _ := cmd.Flags().GetInt("min-commits")
		topN, _ := cmd.Flags().GetInt("top-n")
		format, _ := cmd.Flags().GetString("format")
		outputPath, _ := cmd.Flags().GetString("output")
		apiURL, _ := cmd.Flags().GetString("api-url")
		sinceStr, _ := cmd.Flags().GetString("since")
		untilStr, _ := cmd.Flags().GetString("until")

		// A local .env supplies GITHUB_TOKEN during development.
		_ = godotenv.Load()
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: no GitHub token. Set GITHUB_TOKEN or pass --token.")
			os.Exit(1)
		}

		since, err := parseDate(sinceStr, false)
		if err != nil {
			return fmt.Errorf("invalid --since date, expected YYYY-MM-DD: %w", err)
		}
		until, err := parseDate(untilStr, true)
		if err != nil {
			return fmt.Errorf("invalid --until date, expected YYYY-MM-DD: %w", err)
		}

		store, err := newCacheStore(cmd)
		if err != nil {
			logger.Warnf("cache disabled: %v", err)
		}

		githubGateway, err := gateway.NewGitHubGateway(token, apiURL, store, logger)
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		aggregator := usecase.NewAggregator(githubGateway, logger)

		report, err := aggregator.Aggregate(ctx, usecase.Options{
			Org:          org,
			Since:        since,
			Until:        until,
			IncludeForks: includeForks,
			Repo:         repo,
			ExcludeRepos: excludeRepos,
			SortBy:       sortBy,
			ExcludeBots:  excludeBots,
			MinCommits:   minCommits,
		})
		if err != nil {
			return fmt.Errorf("failed to aggregate stats: %w", err)
		}

		out := io.Writer(os.Stdout)
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		switch format {
		case "json":
			return render.JSON(out, report)
		case "csv":
			return render.CSV(out, report)
		default:
			return render.Table(out, report, topN, sortBy)
		}
	},
}

// newLogger builds the injected logger: warnings only by default, debug
// output with --verbose. Logs go to stderr so report output stays clean.
func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// parseDate converts a YYYY-MM-DD flag into a UTC timestamp; endOfDay picks
// 23:59:59 so --until covers the whole named day. Empty input yields nil.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(inputDateLayout, value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	}
	return &t, nil
}

func newCacheStore(cmd *cobra.Command) (*cache.FileCache, error) {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	if noCache {
		return nil, nil
	}
	dir, _ := cmd.Flags().GetString("cache-dir")
	if dir == "" {
		var err error
		dir, err = cache.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	ttl, _ := cmd.Flags().GetDuration("cache-ttl")
	return cache.New(dir, ttl)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringP("org", "o", "", "Target GitHub organization or user account (required)")
	statsCmd.MarkFlagRequired("org") //nolint:errcheck
	statsCmd.Flags().String("token", "", "GitHub API token (default: $GITHUB_TOKEN)")
	statsCmd.Flags().String("repo", "", "Collect a single repository instead of the whole org")
	statsCmd.Flags().StringSlice("exclude-repos", nil, "Repository names to skip")
	statsCmd.Flags().Bool("include-forks", false, "Include forked repositories")
	statsCmd.Flags().String("since", "", "Start date filter (YYYY-MM-DD)")
	statsCmd.Flags().String("until", "", "End date filter (YYYY-MM-DD)")
	statsCmd.Flags().String("sort-by", "commits", "Contributor sort key: commits, additions, deletions, lines")
	statsCmd.Flags().Bool("exclude-bots", false, "Exclude bot accounts from contributor stats")
	statsCmd.Flags().Int("min-commits", 0, "Drop contributors below this commit count")
	statsCmd.Flags().Int("top-n", 10, "Number of top contributors to show")
	statsCmd.Flags().String("format", "table", "Output format: table, json, csv")
	statsCmd.Flags().String("output", "", "Write the report to a file instead of stdout")
	statsCmd.Flags().String("api-url", "", "GitHub Enterprise API base URL")
	statsCmd.Flags().Bool("no-cache", false, "Disable the on-disk response cache")
	statsCmd.Flags().String("cache-dir", "", "Response cache directory (default: user cache dir)")
	statsCmd.Flags().Duration("cache-ttl", cache.DefaultTTL, "Response cache time-to-live")
}
