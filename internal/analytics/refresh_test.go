package analytics

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/threads"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

var refreshAccount = types.Account{AccountID: "acc-1", UserID: "u1", AccessToken: "tok", Username: "alice"}

type fakeSource struct {
	posts     []threads.Post
	listErr   error
	metrics   map[string]types.Metrics
	requested []string
}

func (f *fakeSource) ListPosts(ctx context.Context, acct types.Account) ([]threads.Post, error) {
	return f.posts, f.listErr
}

func (f *fakeSource) FetchInsights(ctx context.Context, acct types.Account, ids []string) (map[string]types.Metrics, error) {
	f.requested = append(f.requested, ids...)
	out := make(map[string]types.Metrics, len(ids))
	for _, id := range ids {
		if m, ok := f.metrics[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func newAnalyticsStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fetchedPosts(n int, newest time.Time) []threads.Post {
	posts := make([]threads.Post, n)
	for i := range posts {
		posts[i] = threads.Post{
			ID:        fmt.Sprintf("p%03d", i),
			Text:      fmt.Sprintf("post %d", i),
			Timestamp: newest.Add(-time.Duration(i) * time.Hour),
		}
	}
	return posts
}

func TestPlanMergeCapsRefreshNewestFirst(t *testing.T) {
	newest := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fetched := fetchedPosts(60, newest)
	// upstream order scrambled: oldest first
	for i, j := 0, len(fetched)-1; i < j; i, j = i+1, j-1 {
		fetched[i], fetched[j] = fetched[j], fetched[i]
	}
	stored := make(map[string]store.PostRef)
	for _, p := range fetched {
		stored[p.ID] = store.PostRef{RowIndex: 1}
	}
	fetched = append(fetched, threads.Post{ID: "fresh", Timestamp: newest.Add(time.Hour)})

	plan := PlanMerge(fetched, stored, 50)
	require.Len(t, plan.New, 1)
	require.Len(t, plan.Refresh, 50)
	assert.Equal(t, 10, plan.Deferred)
	assert.Equal(t, "p000", plan.Refresh[0].ID)
	assert.Equal(t, "p049", plan.Refresh[49].ID)
	assert.Equal(t, "fresh", plan.IDs()[0])
}

func TestPlanMergeDeduplicatesIDs(t *testing.T) {
	fetched := []threads.Post{{ID: "a"}, {ID: "a"}, {ID: ""}, {ID: "b"}}
	plan := PlanMerge(fetched, map[string]store.PostRef{"b": {}}, 50)
	assert.Len(t, plan.New, 1)
	assert.Len(t, plan.Refresh, 1)
}

func TestRefreshAppendsNewAndUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	fetchedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.AppendPosts(ctx, []types.Post{{
		PostID: "old", AccountID: "acc-1", Text: "kept text",
		Metrics: types.Metrics{Views: 10, Likes: 1}, EngagementRate: 10, FetchedAt: fetchedAt,
	}}))

	src := &fakeSource{
		posts: []threads.Post{
			{ID: "new", Text: "hello", Timestamp: fetchedAt, Permalink: "https://threads.net/p/new"},
			{ID: "old", Text: "kept text"},
			{ID: "missing", Text: "no insights"},
		},
		metrics: map[string]types.Metrics{
			"new": {Views: 200, Likes: 10, Shares: 50},
			"old": {Views: 100, Likes: 4, Replies: 1},
		},
	}

	r := NewRefresher(src, st, lock.NewLocal(), 50, logging.Discard(), nil)
	now := fetchedAt.Add(24 * time.Hour)
	r.now = func() time.Time { return now }

	res, err := r.Run(ctx, refreshAccount)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.NewPosts)
	assert.Equal(t, 1, res.UpdatedPosts)
	assert.Equal(t, "alice", res.Username)

	posts, err := st.Posts(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, posts, 2)

	byID := map[string]types.Post{}
	for _, p := range posts {
		byID[p.PostID] = p
	}
	assert.Equal(t, int64(100), byID["old"].Views)
	assert.Equal(t, 5.0, byID["old"].EngagementRate)
	assert.Equal(t, "kept text", byID["old"].Text)
	assert.True(t, now.Equal(byID["old"].FetchedAt))

	assert.Equal(t, 5.0, byID["new"].EngagementRate)
	assert.Equal(t, types.MediaTypeText, byID["new"].MediaType)
	assert.Equal(t, "https://threads.net/p/new", byID["new"].Permalink)
	assert.NotContains(t, byID, "missing")
}

func TestRefreshLeavesUnrefreshedPostsUntouched(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	newest := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	old := newest.AddDate(0, 0, -30)

	fetched := fetchedPosts(55, newest)
	stored := make([]types.Post, len(fetched))
	metrics := make(map[string]types.Metrics)
	for i, p := range fetched {
		stored[i] = types.Post{PostID: p.ID, AccountID: "acc-1", Timestamp: p.Timestamp,
			Metrics: types.Metrics{Views: 1}, FetchedAt: old}
		metrics[p.ID] = types.Metrics{Views: 100, Likes: 1}
	}
	require.NoError(t, st.AppendPosts(ctx, stored))

	src := &fakeSource{posts: fetched, metrics: metrics}
	r := NewRefresher(src, st, lock.NewLocal(), 50, logging.Discard(), nil)

	res, err := r.Run(ctx, refreshAccount)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewPosts)
	assert.Equal(t, 50, res.UpdatedPosts)
	assert.Equal(t, 5, res.Deferred)
	assert.Len(t, src.requested, 50)

	posts, err := st.Posts(ctx, "acc-1")
	require.NoError(t, err)
	for _, p := range posts {
		if p.PostID >= "p050" {
			assert.True(t, old.Equal(p.FetchedAt), p.PostID)
			assert.Equal(t, int64(1), p.Views)
		} else {
			assert.Equal(t, int64(100), p.Views)
		}
	}
}

func TestRefreshRequiresAuthentication(t *testing.T) {
	r := NewRefresher(&fakeSource{}, newAnalyticsStore(t), lock.NewLocal(), 50, logging.Discard(), nil)

	_, err := r.Run(context.Background(), types.Account{AccountID: "acc-1"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRefreshListFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	src := &fakeSource{listErr: errors.New("upstream down")}

	r := NewRefresher(src, st, lock.NewLocal(), 50, logging.Discard(), nil)
	_, err := r.Run(ctx, refreshAccount)
	require.Error(t, err)

	posts, err := st.Posts(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestRefreshSixtyStoredFiveNewIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	newest := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	fetched := fetchedPosts(65, newest)
	metrics := make(map[string]types.Metrics)
	for _, p := range fetched {
		metrics[p.ID] = types.Metrics{Views: 100, Likes: 3}
	}
	// the five newest are unseen, the other sixty already stored
	stored := make([]types.Post, 0, 60)
	for _, p := range fetched[5:] {
		stored = append(stored, types.Post{PostID: p.ID, AccountID: "acc-1", Timestamp: p.Timestamp})
	}
	require.NoError(t, st.AppendPosts(ctx, stored))

	src := &fakeSource{posts: fetched, metrics: metrics}
	r := NewRefresher(src, st, lock.NewLocal(), 50, logging.Discard(), nil)

	res, err := r.Run(ctx, refreshAccount)
	require.NoError(t, err)
	assert.Len(t, src.requested, 55)
	assert.Equal(t, 5, res.NewPosts)
	assert.Equal(t, 50, res.UpdatedPosts)

	posts, err := st.Posts(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, posts, 65)

	src.requested = nil
	res, err = r.Run(ctx, refreshAccount)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewPosts)
	assert.Len(t, src.requested, 50)

	posts, err = st.Posts(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, posts, 65)
}
