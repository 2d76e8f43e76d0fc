// Package render formats a completed OrgReport for terminal, JSON, or CSV
// output. It is fully decoupled from collection: its only input is the report
// plus a handful of presentation options.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/jhl-labs/vibe-stats/internal/domain"
)

const (
	languageRows = 15
	barWidth     = 20
)

func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return s
	}
	var b strings.Builder
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String()
}

func makeBar(percentage float64) string {
	filled := int(math.Round(percentage / 100 * barWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// Table renders the report as styled terminal tables.
func Table(w io.Writer, report *domain.OrgReport, topN int, sortBy string) error {
	header := fmt.Sprintf("vibe-stats: %s", report.Org)
	if report.PeriodStart != "" || report.PeriodEnd != "" {
		start := report.PeriodStart
		if start == "" {
			start = "..."
		}
		end := report.PeriodEnd
		if end == "" {
			end = "..."
		}
		header += fmt.Sprintf("  (%s ~ %s)", start, end)
	}
	pterm.DefaultSection.WithWriter(w).Println(header)

	if len(report.FailedRepos) > 0 {
		pterm.Warning.WithWriter(w).Printfln("failed to collect stats for %d repo(s): %s",
			len(report.FailedRepos), strings.Join(report.FailedRepos, ", "))
	}

	summary := pterm.TableData{
		{"Repositories", formatNumber(report.TotalRepos)},
		{"Total Commits", formatNumber(report.TotalCommits)},
		{"Additions", formatNumber(report.TotalAdditions)},
		{"Deletions", formatNumber(report.TotalDeletions)},
		{"Open PRs", formatNumber(report.TotalOpenPRs)},
		{"Merged PRs", formatNumber(report.TotalMergedPRs)},
		{"Open Issues", formatNumber(report.TotalOpenIssues)},
		{"Stars", formatNumber(report.TotalStars)},
	}
	if err := pterm.DefaultTable.WithWriter(w).WithData(summary).Render(); err != nil {
		return err
	}

	if len(report.Languages) > 0 {
		pterm.DefaultSection.WithWriter(w).WithLevel(2).Println("Language Distribution")
		rows := pterm.TableData{{"Language", "Bar", "Percentage", "Bytes"}}
		for i, lang := range report.Languages {
			if i >= languageRows {
				break
			}
			rows = append(rows, []string{
				lang.Language,
				makeBar(lang.Percentage),
				fmt.Sprintf("%.1f%%", lang.Percentage),
				formatNumber(lang.Bytes),
			})
		}
		if err := pterm.DefaultTable.WithWriter(w).WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
	}

	if len(report.Contributors) > 0 {
		pterm.DefaultSection.WithWriter(w).WithLevel(2).Printfln("Top Contributors (by %s)", sortBy)
		rows := pterm.TableData{{"#", "Username", "Commits", "Additions", "Deletions"}}
		for i, c := range report.Contributors {
			if i >= topN {
				break
			}
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				c.Username,
				formatNumber(c.Commits),
				formatNumber(c.Additions),
				formatNumber(c.Deletions),
			})
		}
		if err := pterm.DefaultTable.WithWriter(w).WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
	}

	if report.PRInsights.TotalAnalyzed > 0 {
		pterm.DefaultSection.WithWriter(w).WithLevel(2).Println("Pull Requests")
		rows := pterm.TableData{
			{"Analyzed", formatNumber(report.PRInsights.TotalAnalyzed)},
			{"Drafts", formatNumber(report.PRInsights.DraftCount)},
		}
		if report.PRInsights.AvgMergeHours != nil {
			rows = append(rows, []string{"Avg Merge Hours", fmt.Sprintf("%.1f", *report.PRInsights.AvgMergeHours)})
		}
		if report.PRInsights.AvgCloseHours != nil {
			rows = append(rows, []string{"Avg Close Hours", fmt.Sprintf("%.1f", *report.PRInsights.AvgCloseHours)})
		}
		if err := pterm.DefaultTable.WithWriter(w).WithData(rows).Render(); err != nil {
			return err
		}
	}

	return nil
}

// JSON renders the full report as indented JSON.
func JSON(w io.Writer, report *domain.OrgReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// CSV renders the org-level contributor list as CSV rows.
func CSV(w io.Writer, report *domain.OrgReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"username", "commits", "additions", "deletions"}); err != nil {
		return err
	}
	for _, c := range report.Contributors {
		record := []string{
			c.Username,
			strconv.Itoa(c.Commits),
			strconv.Itoa(c.Additions),
			strconv.Itoa(c.Deletions),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
