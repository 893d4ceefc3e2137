package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

func TestDraftStatusAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendDrafts(ctx, []types.Draft{
		{ID: "d1", AccountID: "a1", Text: "one", Kind: types.DraftSingle, Status: types.DraftUnused, CreatedAt: at},
		{ID: "d2", AccountID: "a1", Text: "two", Kind: types.DraftThreadParent, Status: types.DraftUnused, ThreadID: "t1", CreatedAt: at},
		{ID: "d3", AccountID: "a1", Text: "three", Kind: types.DraftThreadReply, Status: types.DraftUnused, ThreadID: "t1", ThreadOrder: 1, CreatedAt: at},
		{ID: "d4", AccountID: "a2", Text: "other", Status: types.DraftUnused, CreatedAt: at},
	}))

	n, err := s.SetDraftStatus(ctx, "a1", []string{"d2", "d3", "d4"}, types.DraftUsed)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only the account's own rows change")

	drafts, err := s.Drafts(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, types.DraftUnused, drafts[0].Status)
	assert.Equal(t, types.DraftUsed, drafts[2].Status)
	assert.Equal(t, 1, drafts[2].ThreadOrder)
	assert.Equal(t, "t1", drafts[2].ThreadID)
	assert.True(t, drafts[2].CreatedAt.Equal(at))

	n, err = s.DeleteDrafts(ctx, "a1", []string{"d1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	drafts, err = s.Drafts(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
}

func TestReplaceSearchResultsPerKeyword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceSearchResults(ctx, "a1", "coffee", "KEYWORD", "TOP",
		[]types.SearchPost{{PostID: "c1", IsReply: true}, {PostID: "c2"}}, at))
	require.NoError(t, s.ReplaceSearchResults(ctx, "a1", "tea", "KEYWORD", "TOP",
		[]types.SearchPost{{PostID: "t1"}}, at))
	require.NoError(t, s.ReplaceSearchResults(ctx, "a1", "coffee", "KEYWORD", "RECENT",
		[]types.SearchPost{{PostID: "c3"}}, at.Add(time.Hour)))

	coffee, err := s.SearchResults(ctx, "a1", "coffee")
	require.NoError(t, err)
	require.Len(t, coffee, 1)
	assert.Equal(t, "c3", coffee[0].PostID)
	assert.True(t, coffee[0].FetchedAt.Equal(at.Add(time.Hour)))

	tea, err := s.SearchResults(ctx, "a1", "tea")
	require.NoError(t, err)
	assert.Len(t, tea, 1)

	n, err := s.DeleteSearchResults(ctx, "a1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordSearchReplacesSameKeywordAndMode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []types.SearchHistoryEntry{
		{AccountID: "a1", Keyword: "coffee", SearchMode: "KEYWORD", ResultCount: 3},
		{AccountID: "a1", Keyword: "coffee", SearchMode: "TAG", ResultCount: 1},
		{AccountID: "a1", Keyword: "coffee", SearchMode: "KEYWORD", ResultCount: 9},
	} {
		require.NoError(t, s.RecordSearch(ctx, e))
	}

	history, err := s.SearchHistory(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "TAG", history[0].SearchMode)
	assert.Equal(t, 9, history[1].ResultCount)

	n, err := s.ClearSearchHistory(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCompetitorsAndWatchPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := types.Competitor{ID: "comp_1", AccountID: "a1", Username: "carol", Category: "peer", Followers: 10}
	require.NoError(t, s.SaveCompetitor(ctx, c))
	c.Followers = 25
	require.NoError(t, s.SaveCompetitor(ctx, c))

	listed, err := s.Competitors(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(25), listed[0].Followers)

	require.NoError(t, s.AppendWatchPost(ctx, types.WatchPost{
		ID: "watch_1", AccountID: "a1", CompetitorUsername: "carol", PostText: "hi",
		Likes: 7, Tags: []string{"buzz", "launch"},
	}))
	posts, err := s.WatchPosts(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, []string{"buzz", "launch"}, posts[0].Tags)
	assert.Equal(t, int64(7), posts[0].Likes)

	n, err := s.DeleteCompetitor(ctx, "a1", "comp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.DeleteWatchPost(ctx, "a1", "watch_missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAccountDropsResearchRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccount(ctx, types.Account{AccountID: "a1", UserID: "u1"}))
	require.NoError(t, s.AppendDrafts(ctx, []types.Draft{{ID: "d1", AccountID: "a1"}}))
	require.NoError(t, s.RecordSearch(ctx, types.SearchHistoryEntry{AccountID: "a1", Keyword: "k"}))
	require.NoError(t, s.ReplaceSearchResults(ctx, "a1", "k", "KEYWORD", "TOP", []types.SearchPost{{PostID: "s1"}}, time.Now()))
	require.NoError(t, s.SaveCompetitor(ctx, types.Competitor{ID: "comp_1", AccountID: "a1"}))
	require.NoError(t, s.AppendWatchPost(ctx, types.WatchPost{ID: "watch_1", AccountID: "a1"}))
	require.NoError(t, s.AppendDrafts(ctx, []types.Draft{{ID: "d2", AccountID: "a2"}}))

	require.NoError(t, s.DeleteAccount(ctx, "a1"))

	for _, table := range []string{TableDrafts, TableSearchHistory, TableSearchResults, TableCompetitors, TableWatchPosts} {
		rows, err := s.ReadRows(ctx, table, ForAccount("a1"))
		require.NoError(t, err)
		assert.Empty(t, rows, table)
	}
	other, err := s.Drafts(ctx, "a2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
