package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures(types.Post{Text: "Big news! Read this #go #golang\nmore", MediaType: types.MediaTypeText})
	assert.Equal(t, 8, f.HookLength)
	assert.Equal(t, 2, f.HashtagCount)
	assert.True(t, f.HasHashtag)
	assert.False(t, f.IsQuestion)
	assert.False(t, f.HasMedia)
	assert.Equal(t, 36, f.Length)

	f = ExtractFeatures(types.Post{Text: "今日は何する？"})
	assert.True(t, f.IsQuestion)
	assert.Equal(t, 6, f.HookLength)
	assert.Equal(t, 7, f.Length)

	assert.True(t, ExtractFeatures(types.Post{Text: "look https://cdn.example.com/a.JPG"}).HasMedia)
	assert.True(t, ExtractFeatures(types.Post{Text: "photo " + MediaMarker}).HasMedia)
	assert.False(t, ExtractFeatures(types.Post{Text: "caption only", MediaType: "IMAGE"}).HasMedia)
	assert.Equal(t, 0, ExtractFeatures(types.Post{}).HookLength)
}

func TestAnalyzeBuzzEmpty(t *testing.T) {
	report := AnalyzeBuzz(nil, time.UTC)
	assert.False(t, report.HasData)
	assert.Nil(t, report.Top)
	assert.Nil(t, report.Bottom)
}

func TestAnalyzeBuzzSmallSampleOverlaps(t *testing.T) {
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	posts := []types.Post{
		{PostID: "low", EngagementRate: 1, Timestamp: base},
		{PostID: "high", EngagementRate: 9, Timestamp: base},
		{PostID: "mid", EngagementRate: 5, Timestamp: base},
	}

	report := AnalyzeBuzz(posts, time.UTC)
	require.True(t, report.HasData)
	assert.Equal(t, 3, report.SampleSize)
	// ceil(0.2*3) = 1
	assert.Equal(t, 1, report.Top.Count)
	assert.Equal(t, 1, report.Bottom.Count)
	assert.Equal(t, 9.0, report.Top.AvgER)
	assert.Equal(t, 1.0, report.Bottom.AvgER)
	assert.Equal(t, "high", report.TopPosts[0].PostID)

	single := AnalyzeBuzz(posts[:1], time.UTC)
	assert.Equal(t, single.Top, single.Bottom)
}

func TestAnalyzeBuzzGroupSizeCapped(t *testing.T) {
	base := time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC) // Sunday
	var posts []types.Post
	for i := 0; i < 100; i++ {
		text := "plain text"
		if i >= 90 {
			text = fmt.Sprintf("Why does this work? #tip%d", i)
		}
		posts = append(posts, types.Post{
			PostID:         fmt.Sprintf("p%d", i),
			Text:           text,
			EngagementRate: float64(i),
			Timestamp:      base.AddDate(0, 0, -7*(i%3)),
		})
	}

	report := AnalyzeBuzz(posts, time.UTC)
	assert.Equal(t, 10, report.Top.Count)
	assert.Equal(t, 10, report.Bottom.Count)
	assert.Equal(t, 94.5, report.Top.AvgER)
	assert.Equal(t, 4.5, report.Bottom.AvgER)
	assert.Equal(t, 100, report.Top.QuestionRate)
	assert.Equal(t, 100, report.Top.HashtagRate)
	assert.Equal(t, 0, report.Bottom.HashtagRate)
	assert.Equal(t, 1.0, report.Top.AvgHashtagCount)
	assert.Equal(t, 21, report.Top.BestHour)
	assert.Equal(t, "Sunday", report.Top.BestWeekday)
}

func TestAnalyzeBuzzModeTieGoesToHigherRanked(t *testing.T) {
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	var posts []types.Post
	// ten posts so the top group is two: hours 7 and 20, one each
	for i := 0; i < 10; i++ {
		posts = append(posts, types.Post{EngagementRate: float64(i), Timestamp: base.Add(time.Duration(i%4) * time.Hour)})
	}
	posts[9].Timestamp = base.Add(20 * time.Hour)
	posts[8].Timestamp = base.Add(7 * time.Hour)

	report := AnalyzeBuzz(posts, time.UTC)
	require.Equal(t, 2, report.Top.Count)
	assert.Equal(t, 20, report.Top.BestHour)
}

func TestBuzzAnalyzeUsesWindow(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.AppendPosts(ctx, []types.Post{
		{PostID: "recent", AccountID: "acc-1", Timestamp: now.AddDate(0, 0, -3), EngagementRate: 4},
		{PostID: "stale", AccountID: "acc-1", Timestamp: now.AddDate(0, 0, -45), EngagementRate: 40},
	}))

	b := NewBuzz(st, time.UTC, 30)
	b.now = func() time.Time { return now }

	report, err := b.Analyze(ctx, refreshAccount, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, report.WindowDays)
	assert.Equal(t, 1, report.SampleSize)
	assert.Equal(t, 4.0, report.Top.AvgER)

	report, err = b.Analyze(ctx, refreshAccount, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SampleSize)
}
