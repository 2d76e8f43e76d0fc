package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhl-labs/vibe-stats/internal/domain"
)

func sampleReport() *domain.OrgReport {
	avgMerge := 13.3
	return &domain.OrgReport{
		Org:            "acme",
		PeriodStart:    "2024-05-01T00:00:00Z",
		TotalRepos:     2,
		TotalCommits:   1234,
		TotalAdditions: 5000,
		TotalDeletions: 2000,
		Languages: []domain.LanguageStat{
			{Language: "Python", Bytes: 10000, Percentage: 62.5},
			{Language: "Go", Bytes: 6000, Percentage: 37.5},
		},
		Contributors: []domain.ContributorStat{
			{Username: "alice", Commits: 20, Additions: 150, Deletions: 30},
			{Username: "bob", Commits: 10, Additions: 80, Deletions: 5},
		},
		FailedRepos: []string{"broken"},
		PRInsights:  domain.PRInsight{TotalAnalyzed: 3, AvgMergeHours: &avgMerge},
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234", formatNumber(1234))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-42", formatNumber(-42))
}

func TestMakeBar(t *testing.T) {
	assert.Equal(t, "████████████████████", makeBar(100))
	assert.Equal(t, "░░░░░░░░░░░░░░░░░░░░", makeBar(0))
	assert.Equal(t, "█████████████░░░░░░░", makeBar(62.5))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "acme", decoded["org"])
	assert.Equal(t, float64(1234), decoded["total_commits"])
	assert.Equal(t, []interface{}{"broken"}, decoded["failed_repos"])

	insights, ok := decoded["pr_insights"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 13.3, insights["avg_merge_hours"])
	assert.Nil(t, insights["median_merge_hours"])
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"username", "commits", "additions", "deletions"}, records[0])
	assert.Equal(t, []string{"alice", "20", "150", "30"}, records[1])
	assert.Equal(t, []string{"bob", "10", "80", "5"}, records[2])
}

func TestTable(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, sampleReport(), 10, domain.SortByCommits))

	out := buf.String()
	assert.Contains(t, out, "vibe-stats: acme")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "broken")
	assert.Contains(t, out, "Python")
	assert.Contains(t, out, "62.5%")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "Avg Merge Hours")
}

func TestTable_EmptySectionsSkipped(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	report := &domain.OrgReport{Org: "acme"}
	require.NoError(t, Table(&buf, report, 10, domain.SortByCommits))

	out := buf.String()
	assert.NotContains(t, out, "Language Distribution")
	assert.NotContains(t, out, "Top Contributors")
	assert.NotContains(t, out, "Pull Requests")
}
