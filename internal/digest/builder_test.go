package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

func TestBuildWeeklyReport(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	rep := types.WeeklyReport{
		WeekStart:       "2025-03-02",
		WeekEnd:         "2025-03-09",
		FollowersStart:  100,
		FollowersEnd:    95,
		FollowersChange: -5,
		Totals:          types.Metrics{Views: 1200, Likes: 40},
		AvgER:           3.33,
		PostCount:       4,
		TopPosts: []types.Post{
			{Text: strings.Repeat("あ", 150), EngagementRate: 9.5, Permalink: "https://www.threads.net/@alice/post/1"},
			{Text: "<script>alert(1)</script>", EngagementRate: 2},
		},
		AISummary: "Solid week.",
	}

	d, err := b.Build(rep, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Weekly report - @alice", d.Subject)

	assert.Contains(t, d.HTMLBody, "2025-03-02 to 2025-03-09")
	assert.Contains(t, d.HTMLBody, "100 → 95 (-5)")
	assert.Contains(t, d.HTMLBody, "3.33%")
	assert.NotContains(t, d.HTMLBody, "<script>alert(1)</script>")
	assert.Contains(t, d.HTMLBody, "https://www.threads.net/@alice/post/1")

	assert.Contains(t, d.PlainBody, "Followers: 100 -> 95 (-5)")
	assert.Contains(t, d.PlainBody, "1. ER 9.50% / "+strings.Repeat("あ", 99)+"…")
	assert.Contains(t, d.PlainBody, "Solid week.")
}

func TestBuildRejectsEmptyReport(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	_, err = b.Build(types.WeeklyReport{}, "alice")
	assert.Error(t, err)
}

func TestSignedAndTruncate(t *testing.T) {
	assert.Equal(t, "+0", signed(0))
	assert.Equal(t, "+3", signed(3))
	assert.Equal(t, "-2", signed(-2))

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
