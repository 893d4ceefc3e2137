package competitors

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

var acct = types.Account{AccountID: "acc-1", UserID: "u1", AccessToken: "tok", Username: "alice"}

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
	opts    []providers.Options
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, opts providers.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	return f.reply, f.err
}

func newTestWatch(t *testing.T, gen Completer) (*Watch, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "competitors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	w := New(st, gen, time.UTC)
	clock := now
	w.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return w, st
}

func TestAddCompetitor(t *testing.T) {
	w, _ := newTestWatch(t, nil)
	ctx := context.Background()

	c, err := w.Add(ctx, acct, AddRequest{Username: " @Carol ", DisplayName: "Carol C", Followers: 1200})
	require.NoError(t, err)
	assert.Equal(t, "Carol", c.Username)
	assert.Equal(t, CategoryPeer, c.Category)
	assert.Equal(t, int64(1200), c.Followers)
	assert.Regexp(t, `^comp_[0-9a-f]{8}$`, c.ID)

	_, err = w.Add(ctx, acct, AddRequest{Username: "carol"})
	assert.ErrorIs(t, err, types.ErrInvalidInput, "duplicates ignore case")

	_, err = w.Add(ctx, types.Account{AccountID: "acc-2"}, AddRequest{Username: "carol"})
	assert.NoError(t, err, "other accounts keep their own list")

	_, err = w.Add(ctx, acct, AddRequest{Username: "@"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestUpdateAndDeleteCompetitor(t *testing.T) {
	w, _ := newTestWatch(t, nil)
	ctx := context.Background()

	c, err := w.Add(ctx, acct, AddRequest{Username: "carol", Memo: "old"})
	require.NoError(t, err)

	followers := int64(900)
	memo := " rising fast "
	updated, err := w.Update(ctx, acct, c.ID, UpdateRequest{Followers: &followers, Memo: &memo})
	require.NoError(t, err)
	assert.Equal(t, int64(900), updated.Followers)
	assert.Equal(t, "rising fast", updated.Memo)
	assert.True(t, updated.FollowersUpdated.After(c.FollowersUpdated))
	assert.Equal(t, CategoryPeer, updated.Category)

	listed, err := w.List(ctx, acct)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "rising fast", listed[0].Memo)

	_, err = w.Update(ctx, acct, "comp_missing", UpdateRequest{Memo: &memo})
	assert.ErrorIs(t, err, ErrCompetitorNotFound)

	require.NoError(t, w.Delete(ctx, acct, c.ID))
	assert.ErrorIs(t, w.Delete(ctx, acct, c.ID), types.ErrNotFound)
}

func TestSavePostRegistersUnknownCompetitor(t *testing.T) {
	w, _ := newTestWatch(t, nil)
	ctx := context.Background()

	_, err := w.Add(ctx, acct, AddRequest{Username: "Carol"})
	require.NoError(t, err)

	p, err := w.SavePost(ctx, acct, WatchRequest{
		CompetitorUsername: "@dave", PostText: " big news ", MediaType: "image",
		Likes: 40, Tags: []string{"#Buzz", "buzz", " launch "},
	})
	require.NoError(t, err)
	assert.Equal(t, "dave", p.CompetitorUsername)
	assert.Equal(t, "big news", p.PostText)
	assert.Equal(t, "IMAGE", p.MediaType)
	assert.Equal(t, "2025-03-12", p.PostDate)
	assert.Equal(t, []string{"Buzz", "launch"}, p.Tags)
	assert.Regexp(t, `^watch_[0-9a-f]{8}$`, p.ID)

	_, err = w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "hello"})
	require.NoError(t, err)

	listed, err := w.List(ctx, acct)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Carol", listed[0].Username)
	assert.Equal(t, 1, listed[0].WatchCount, "counts match usernames ignoring case")
	assert.Equal(t, "dave", listed[1].Username)
	assert.Equal(t, CategoryAuto, listed[1].Category)
	assert.Equal(t, 1, listed[1].WatchCount)

	_, err = w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "dave"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestPostsFilterAndOrder(t *testing.T) {
	w, _ := newTestWatch(t, nil)
	ctx := context.Background()

	first, err := w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "one", Tags: []string{"buzz"}})
	require.NoError(t, err)
	_, err = w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "dave", PostText: "two", Tags: []string{"mega-buzz"}})
	require.NoError(t, err)
	third, err := w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "Carol", PostText: "three"})
	require.NoError(t, err)

	all, err := w.Posts(ctx, acct, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)

	carol, err := w.Posts(ctx, acct, "@carol", "")
	require.NoError(t, err)
	assert.Len(t, carol, 2)

	tagged, err := w.Posts(ctx, acct, "", "BUZZ")
	require.NoError(t, err)
	assert.Len(t, tagged, 2)

	require.NoError(t, w.DeletePost(ctx, acct, first.ID))
	assert.ErrorIs(t, w.DeletePost(ctx, acct, first.ID), ErrWatchPostNotFound)
}

func TestAnalyzeStyle(t *testing.T) {
	gen := &fakeCompleter{reply: " steady voice "}
	w, _ := newTestWatch(t, gen)
	ctx := context.Background()

	_, err := w.AnalyzeStyle(ctx, acct, "carol")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "short hooks win", Likes: 12})
	require.NoError(t, err)

	res, err := w.AnalyzeStyle(ctx, acct, "@carol")
	require.NoError(t, err)
	assert.Equal(t, Analysis{Target: "@carol", PostCount: 1, Analysis: "steady voice"}, res)
	assert.Contains(t, gen.prompts[0], "likes=12")
	assert.Contains(t, gen.prompts[0], "short hooks win")
	assert.Equal(t, 0.6, gen.opts[0].Temperature)
}

func TestAnalyzeVsSelf(t *testing.T) {
	gen := &fakeCompleter{reply: "do more threads"}
	w, st := newTestWatch(t, gen)
	ctx := context.Background()

	_, err := w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "their post", Likes: 50})
	require.NoError(t, err)

	_, err = w.AnalyzeVsSelf(ctx, acct, "")
	assert.ErrorIs(t, err, types.ErrInvalidInput, "needs own posts")

	require.NoError(t, st.AppendPosts(ctx, []types.Post{
		{PostID: "p1", AccountID: acct.AccountID, Text: "my best", Timestamp: now.AddDate(0, 0, -2),
			Metrics: types.Metrics{Views: 100, Likes: 10}, EngagementRate: 10},
		{PostID: "p2", AccountID: acct.AccountID, Text: "too old", Timestamp: now.AddDate(0, 0, -60), EngagementRate: 50},
	}))

	res, err := w.AnalyzeVsSelf(ctx, acct, "")
	require.NoError(t, err)
	assert.Equal(t, "all competitors", res.Target)
	assert.Equal(t, 1, res.PostCount)
	assert.Equal(t, 1, res.MyPostCount)
	assert.Equal(t, "do more threads", res.Analysis)
	assert.Contains(t, gen.prompts[0], "my best")
	assert.NotContains(t, gen.prompts[0], "too old")
	assert.Contains(t, gen.prompts[0], "[@carol] likes=50")

	res, err = w.AnalyzeVsSelf(ctx, acct, "carol")
	require.NoError(t, err)
	assert.Equal(t, "@carol", res.Target)
}

func TestAnalyzeBuzzPrefersTaggedPosts(t *testing.T) {
	gen := &fakeCompleter{reply: "hooks"}
	w, _ := newTestWatch(t, gen)
	ctx := context.Background()

	_, err := w.AnalyzeBuzz(ctx, acct)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	for i := 0; i < 20; i++ {
		_, err := w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "plain", Likes: int64(i)})
		require.NoError(t, err)
	}
	res, err := w.AnalyzeBuzz(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, maxBuzzPosts, res.PostCount)
	assert.Contains(t, gen.prompts[0], "likes=19")
	assert.NotContains(t, gen.prompts[0], "likes=4 ")

	_, err = w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "dave", PostText: "viral", Tags: []string{BuzzTag}})
	require.NoError(t, err)
	res, err = w.AnalyzeBuzz(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PostCount)
	assert.Contains(t, gen.prompts[1], "viral")
}

func TestAnalysisNeedsGeneration(t *testing.T) {
	w, _ := newTestWatch(t, nil)
	ctx := context.Background()
	_, err := w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "x"})
	require.NoError(t, err)

	_, err = w.AnalyzeStyle(ctx, acct, "carol")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestAnalysisGenerationFailure(t *testing.T) {
	w, _ := newTestWatch(t, &fakeCompleter{err: errors.New("quota")})
	ctx := context.Background()
	_, err := w.SavePost(ctx, acct, WatchRequest{CompetitorUsername: "carol", PostText: "x"})
	require.NoError(t, err)

	_, err = w.AnalyzeStyle(ctx, acct, "carol")
	assert.ErrorContains(t, err, "quota")
}
