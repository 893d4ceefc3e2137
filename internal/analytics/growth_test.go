package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

var growthNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func growthFixture() GrowthInputs {
	return GrowthInputs{
		AccountID: "acc-1",
		Now:       growthNow,
		Location:  time.UTC,
		Snapshots: []types.FollowerSnapshot{
			{Date: "2025-03-10", Followers: 1035},
			{Date: "2025-03-02", Followers: 500},
			// midnight of the 3rd is before now-7d
			{Date: "2025-03-03", Followers: 600},
			{Date: "2025-03-04", Followers: 1000},
		},
		Posts: []types.Post{
			{Timestamp: growthNow.AddDate(0, 0, -1), Metrics: types.Metrics{Views: 100, Likes: 5}},
			{Timestamp: growthNow.AddDate(0, 0, -2), Metrics: types.Metrics{Views: 100, Likes: 5}},
			{Timestamp: growthNow.AddDate(0, 0, -10), Metrics: types.Metrics{Views: 100, Likes: 4}},
			{Timestamp: growthNow.AddDate(0, 0, -20), Metrics: types.Metrics{Views: 100, Likes: 90}},
		},
		Generations: []types.GenerationEntry{
			{GeneratedAt: growthNow.AddDate(0, 0, -1)},
			{GeneratedAt: growthNow.AddDate(0, 0, -1), AccountID: "acc-1"},
			{GeneratedAt: growthNow.AddDate(0, 0, -1), AccountID: "acc-2"},
			{GeneratedAt: growthNow.AddDate(0, 0, -9), AccountID: "acc-1"},
		},
	}
}

func TestScoreGrowth(t *testing.T) {
	s := ScoreGrowth(growthFixture())

	// (3.5+2)/7*25 = 19.6
	assert.Equal(t, 20, s.Follower)
	// (5-4+2)/4*25 = 18.75
	assert.Equal(t, 19, s.ERTrend)
	// 2/7*25 = 7.1
	assert.Equal(t, 7, s.Frequency)
	// 2/10*25
	assert.Equal(t, 5, s.AIUsage)
	assert.Equal(t, 51, s.Total)
	assert.Equal(t, "2025-03-10", s.Date)
	assert.Equal(t, 3.5, s.Details.FollowerGrowthPct)
	assert.Equal(t, 5.0, s.Details.ThisWeekER)
	assert.Equal(t, 4.0, s.Details.PrevER)
	assert.Equal(t, 2, s.Details.PostCount)
	assert.Equal(t, 2, s.Details.AICount)
}

func TestScoreGrowthFollowerFallbacks(t *testing.T) {
	in := growthFixture()
	in.Snapshots = []types.FollowerSnapshot{{Date: "2025-03-08", Followers: 0}, {Date: "2025-03-09", Followers: 40}}
	assert.Equal(t, 12, ScoreGrowth(in).Follower)

	in.Snapshots = nil
	assert.Equal(t, 0, ScoreGrowth(in).Follower)

	// heavy loss clamps at zero, heavy gain at 25
	in.Snapshots = []types.FollowerSnapshot{{Date: "2025-03-08", Followers: 1000}, {Date: "2025-03-09", Followers: 500}}
	assert.Equal(t, 0, ScoreGrowth(in).Follower)
	in.Snapshots = []types.FollowerSnapshot{{Date: "2025-03-08", Followers: 100}, {Date: "2025-03-09", Followers: 200}}
	assert.Equal(t, 25, ScoreGrowth(in).Follower)
}

func TestScoreGrowthFollowerBoundaries(t *testing.T) {
	cases := []struct {
		from, to int64
		want     int
	}{
		{100, 98, 0},
		{100, 105, 25},
		{200, 203, 13},
		{100, 100, 7},
	}
	for _, tc := range cases {
		in := growthFixture()
		in.Snapshots = []types.FollowerSnapshot{
			{Date: "2025-03-08", Followers: tc.from},
			{Date: "2025-03-09", Followers: tc.to},
		}
		assert.Equal(t, tc.want, ScoreGrowth(in).Follower, "%d -> %d", tc.from, tc.to)
	}
}

func TestScoreGrowthEngagementWithoutPriorWeek(t *testing.T) {
	in := growthFixture()
	in.Posts = []types.Post{{Timestamp: growthNow.Add(-time.Hour), Metrics: types.Metrics{Views: 100, Likes: 3}}}
	// 3/6*25 = 12.5
	assert.Equal(t, 13, ScoreGrowth(in).ERTrend)

	in.Posts = nil
	s := ScoreGrowth(in)
	assert.Equal(t, 0, s.ERTrend)
	assert.Equal(t, 0, s.Frequency)
}

func TestScoreGrowthCapsFrequencyAndAIUsage(t *testing.T) {
	in := growthFixture()
	in.Posts = nil
	in.Generations = nil
	for i := 0; i < 12; i++ {
		in.Posts = append(in.Posts, types.Post{Timestamp: growthNow.Add(-time.Duration(i) * time.Hour)})
		in.Generations = append(in.Generations, types.GenerationEntry{GeneratedAt: growthNow.Add(-time.Hour)})
	}
	s := ScoreGrowth(in)
	assert.Equal(t, 25, s.Frequency)
	assert.Equal(t, 25, s.AIUsage)
}

func TestGrowthCalculateComparesWithWeekOldScore(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	in := growthFixture()

	for _, snap := range in.Snapshots {
		snap.AccountID = "acc-1"
		require.NoError(t, st.UpsertFollowerSnapshot(ctx, snap))
	}
	posts := make([]types.Post, len(in.Posts))
	for i, p := range in.Posts {
		p.PostID = string(rune('a' + i))
		p.AccountID = "acc-1"
		posts[i] = p
	}
	require.NoError(t, st.AppendPosts(ctx, posts))
	require.NoError(t, st.AppendGenerations(ctx, in.Generations))
	require.NoError(t, st.UpsertGrowthScore(ctx, types.GrowthScore{Date: "2025-03-01", AccountID: "acc-1", Total: 30}))
	require.NoError(t, st.UpsertGrowthScore(ctx, types.GrowthScore{Date: "2025-03-05", AccountID: "acc-1", Total: 40}))

	g := NewGrowth(st, lock.NewLocal(), time.UTC)
	g.now = func() time.Time { return growthNow }

	res, err := g.Calculate(ctx, refreshAccount)
	require.NoError(t, err)
	require.True(t, res.HasData)
	assert.Equal(t, 51, res.Current.Total)
	require.NotNil(t, res.Previous)
	assert.Equal(t, "2025-03-01", res.Previous.Date)
	assert.Equal(t, 21, res.Change)

	// same day again overwrites instead of appending
	_, err = g.Calculate(ctx, refreshAccount)
	require.NoError(t, err)
	scores, err := st.GrowthScores(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, scores, 3)

	latest, err := g.Latest(ctx, refreshAccount)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", latest.Current.Date)
	assert.Equal(t, "2025-03-05", latest.Previous.Date)
	assert.Equal(t, 11, latest.Change)
	assert.Equal(t, 2, latest.Current.Details.AICount)
}

func TestGrowthLatestWithoutScores(t *testing.T) {
	g := NewGrowth(newAnalyticsStore(t), lock.NewLocal(), time.UTC)
	res, err := g.Latest(context.Background(), refreshAccount)
	require.NoError(t, err)
	assert.False(t, res.HasData)
}
