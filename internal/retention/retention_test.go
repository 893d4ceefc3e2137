package retention

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/digest"
	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

var acct = types.Account{AccountID: "acc-1", UserID: "u1", AccessToken: "tok", Username: "alice"}

// Wednesday
var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, opts providers.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeSender struct {
	sent []*digest.Digest
	to   []string
}

func (f *fakeSender) SendDigest(ctx context.Context, d *digest.Digest, toAddr string) error {
	f.sent = append(f.sent, d)
	f.to = append(f.to, toAddr)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "retention.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckInStreak(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.AppendCheckIn(ctx, types.CheckIn{Date: "2025-03-11", AccountID: "acc-1", Streak: 4}))

	var row types.TimeSlotRow
	row.Weekday = "Wednesday"
	row.Hours[8] = 3
	row.Hours[19] = 6
	require.NoError(t, st.ReplaceTimeSlots(ctx, "acc-1", []types.TimeSlotRow{row}))

	gen := &fakeCompleter{reply: "```json\n{\"message\": \"Post at 19:00!\", \"theme\": \"Morning habits\"}\n```"}
	c := NewCheckIns(st, gen, lock.NewLocal(), time.UTC, logging.Discard())
	c.now = func() time.Time { return now }

	res, err := c.CheckIn(ctx, acct)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCheckedIn)
	assert.Equal(t, 5, res.Streak)
	assert.Equal(t, "19:00", res.RecommendedTime)
	assert.Equal(t, "Post at 19:00!", res.Message)
	assert.Equal(t, "Morning habits", res.RecommendedTheme)
	assert.Contains(t, gen.prompts[0], "Wednesday")

	again, err := c.CheckIn(ctx, acct)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCheckedIn)
	assert.Equal(t, 5, again.Streak)
	assert.Len(t, gen.prompts, 1)

	history, err := st.CheckIns(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCheckInStreakResetsAndFallsBack(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.AppendCheckIn(ctx, types.CheckIn{Date: "2025-03-09", AccountID: "acc-1", Streak: 9}))

	c := NewCheckIns(st, &fakeCompleter{err: errors.New("quota")}, lock.NewLocal(), time.UTC, logging.Discard())
	c.now = func() time.Time { return now }
	c.pick = func(n int) int { return 2 }

	res, err := c.CheckIn(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, "21:00", res.RecommendedTime)
	assert.Equal(t, "Posting around 21:00 works well for you. Plan a theme for it.", res.Message)
	assert.Equal(t, fallbackTheme, res.RecommendedTheme)
}

func TestCheckInWithoutGenerator(t *testing.T) {
	c := NewCheckIns(newTestStore(t), nil, lock.NewLocal(), time.UTC, logging.Discard())
	c.pick = func(n int) int { return 0 }

	res, err := c.CheckIn(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, fallbackMessages[0], res.Message)
}

func TestGoalsLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	g := NewGoals(st, time.UTC)
	g.now = func() time.Time { return now }

	followers, err := g.Set(ctx, acct, GoalRequest{Target: 50})
	require.NoError(t, err)
	assert.Equal(t, types.GoalFollowerIncrease, followers.Type)
	assert.Equal(t, "This month: +50 followers", followers.Label)
	assert.Regexp(t, `^goal_[0-9a-f]{8}$`, followers.ID)

	posts, err := g.Set(ctx, acct, GoalRequest{Type: types.GoalPostCount, Target: 2, Label: "Two posts"})
	require.NoError(t, err)

	rate, err := g.Set(ctx, acct, GoalRequest{Type: types.GoalERTarget, Target: 10})
	require.NoError(t, err)

	_, err = g.Set(ctx, acct, GoalRequest{Type: "likes", Target: 1})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	_, err = g.Set(ctx, acct, GoalRequest{Target: 0})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	for _, s := range []types.FollowerSnapshot{
		{Date: "2025-03-11", AccountID: "acc-1", Followers: 900},
		{Date: "2025-03-12", AccountID: "acc-1", Followers: 1000},
		{Date: "2025-03-13", AccountID: "acc-1", Followers: 1020},
	} {
		require.NoError(t, st.UpsertFollowerSnapshot(ctx, s))
	}
	require.NoError(t, st.AppendPosts(ctx, []types.Post{
		{PostID: "a", AccountID: "acc-1", Timestamp: now.AddDate(0, 0, -1), Metrics: types.Metrics{Views: 100, Likes: 4}},
		{PostID: "b", AccountID: "acc-1", Timestamp: now.AddDate(0, 0, -3), Metrics: types.Metrics{Views: 100, Likes: 1}},
	}))

	progress, err := g.List(ctx, acct)
	require.NoError(t, err)
	require.Len(t, progress, 3)

	byID := map[string]GoalProgress{}
	for _, p := range progress {
		byID[p.ID] = p
	}
	assert.Equal(t, 20.0, byID[followers.ID].Current)
	assert.Equal(t, 40, byID[followers.ID].Percentage)
	assert.False(t, byID[followers.ID].JustAchieved)

	assert.Equal(t, 2.0, byID[posts.ID].Current)
	assert.Equal(t, 100, byID[posts.ID].Percentage)
	assert.True(t, byID[posts.ID].JustAchieved)

	assert.Equal(t, 2.5, byID[rate.ID].Current)
	assert.Equal(t, 25, byID[rate.ID].Percentage)

	// achieved goals drop out of the open list
	progress, err = g.List(ctx, acct)
	require.NoError(t, err)
	assert.Len(t, progress, 2)

	require.NoError(t, g.Delete(ctx, acct, rate.ID))
	assert.ErrorIs(t, g.Delete(ctx, acct, rate.ID), types.ErrNotFound)

	stored, err := st.Goals(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, percentage(5, 0))
	assert.Equal(t, 0, percentage(-3, 10))
	assert.Equal(t, 50, percentage(5, 10))
	assert.Equal(t, 100, percentage(30, 10))
}

func TestLastWeek(t *testing.T) {
	start, end := LastWeek(now, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), end)

	// on a Sunday the week ending today is complete
	sunday := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	start, end = LastWeek(sunday, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), end)
}

func TestWeeklyGenerate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.AppendPosts(ctx, []types.Post{
		{PostID: "a", AccountID: "acc-1", Text: "in week", Timestamp: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
			Metrics: types.Metrics{Views: 100, Likes: 6}, EngagementRate: 6},
		{PostID: "b", AccountID: "acc-1", Text: "also in week", Timestamp: time.Date(2025, 3, 8, 23, 0, 0, 0, time.UTC),
			Metrics: types.Metrics{Views: 100, Likes: 2}, EngagementRate: 2},
		{PostID: "c", AccountID: "acc-1", Text: "zero", Timestamp: time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
			Metrics: types.Metrics{Views: 100}},
		{PostID: "d", AccountID: "acc-1", Text: "this week", Timestamp: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			Metrics: types.Metrics{Views: 100, Likes: 90}, EngagementRate: 90},
	}))
	for _, s := range []types.FollowerSnapshot{
		{Date: "2025-03-01", AccountID: "acc-1", Followers: 10},
		{Date: "2025-03-02", AccountID: "acc-1", Followers: 100},
		{Date: "2025-03-09", AccountID: "acc-1", Followers: 130},
		{Date: "2025-03-10", AccountID: "acc-1", Followers: 999},
	} {
		require.NoError(t, st.UpsertFollowerSnapshot(ctx, s))
	}

	builder, err := digest.New()
	require.NoError(t, err)
	sender := &fakeSender{}
	gen := &fakeCompleter{reply: "  Good week.  "}
	w := NewWeekly(st, gen, builder, sender, lock.NewLocal(), time.UTC, logging.Discard())
	w.now = func() time.Time { return now }

	res, err := w.Generate(ctx, acct, "me@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.False(t, res.AlreadyGenerated)
	assert.True(t, res.Emailed)

	rep := res.Report
	assert.Equal(t, "2025-03-02", rep.WeekStart)
	assert.Equal(t, "2025-03-09", rep.WeekEnd)
	assert.Equal(t, 3, rep.PostCount)
	assert.Equal(t, int64(300), rep.Totals.Views)
	assert.Equal(t, 2.67, rep.AvgER)
	assert.Equal(t, int64(100), rep.FollowersStart)
	assert.Equal(t, int64(130), rep.FollowersEnd)
	assert.Equal(t, int64(30), rep.FollowersChange)
	require.Len(t, rep.TopPosts, 2)
	assert.Equal(t, "a", rep.TopPosts[0].PostID)
	assert.Equal(t, "Good week.", rep.AISummary)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "me@example.com", sender.to[0])
	assert.Equal(t, "Weekly report - @alice", sender.sent[0].Subject)

	again, err := w.Generate(ctx, acct, "me@example.com")
	require.NoError(t, err)
	assert.True(t, again.AlreadyGenerated)
	assert.Len(t, sender.sent, 1)
	assert.Len(t, gen.prompts, 1)

	stored, err := w.Get(ctx, acct, 0)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "in week", stored.TopPosts[0].Text)

	missing, err := w.Get(ctx, acct, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWeeklyGenerateSummaryFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.AppendPosts(ctx, []types.Post{
		{PostID: "a", AccountID: "acc-1", Timestamp: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), Metrics: types.Metrics{Views: 10}},
	}))

	w := NewWeekly(st, &fakeCompleter{err: errors.New("down")}, nil, nil, lock.NewLocal(), time.UTC, logging.Discard())
	w.now = func() time.Time { return now }

	res, err := w.Generate(ctx, acct, "")
	require.NoError(t, err)
	assert.Equal(t, summaryFailedMessage, res.Report.AISummary)
	assert.False(t, res.Emailed)
}

func TestWeeklyGenerateAll(t *testing.T) {
	w := NewWeekly(newTestStore(t), nil, nil, nil, lock.NewLocal(), time.UTC, logging.Discard())
	w.now = func() time.Time { return now }

	results := w.GenerateAll(context.Background(), []types.Account{acct, {AccountID: "acc-2"}}, "")
	require.Len(t, results, 1)
	assert.Equal(t, "acc-1", results[0].AccountID)
	assert.Empty(t, results[0].Report.AISummary)
	assert.Zero(t, results[0].Report.PostCount)
}
