package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBot(t *testing.T) {
	testCases := []struct {
		username string
		want     bool
	}{
		{"dependabot[bot]", true},
		{"SomeBot[bot]", true},
		{"renovate", true},
		{"Renovate", true},
		{"github-actions", true},
		{"my-bot-project", false}, // substring match must not count
		{"alice", false},
		{"dependabot-fan", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.username, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBot(tc.username))
		})
	}
}

func TestSortKey(t *testing.T) {
	c := ContributorStat{Username: "alice", Commits: 3, Additions: 100, Deletions: 40}

	assert.Equal(t, 3, SortKey(SortByCommits)(c))
	assert.Equal(t, 100, SortKey(SortByAdditions)(c))
	assert.Equal(t, 40, SortKey(SortByDeletions)(c))
	assert.Equal(t, 140, SortKey(SortByLines)(c))
	// Unknown keys fall back to commits.
	assert.Equal(t, 3, SortKey("velocity")(c))
}
