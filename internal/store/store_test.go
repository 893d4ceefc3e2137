package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadRowsMissingTableIsEmpty(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.ReadRows(context.Background(), "does_not_exist", Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteToMissingTableFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AppendRows(ctx, "does_not_exist", []map[string]string{{"a": "b"}})
	assert.ErrorIs(t, err, ErrTableNotFound)

	err = s.ReplaceRows(ctx, "does_not_exist", Filter{}, nil)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestAppendUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRows(ctx, TableSettings, []map[string]string{
		{"key": "a", "value": "1"},
		{"key": "b", "value": "2"},
		{"key": "c"},
	}))

	rows, err := s.ReadRows(ctx, TableSettings, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "", rows[2].Get("value"))

	require.NoError(t, s.UpdateCells(ctx, TableSettings, rows[1].Index, map[string]string{"value": "20"}))
	require.NoError(t, s.DeleteRows(ctx, TableSettings, []int64{rows[0].Index, rows[2].Index}))

	rows, err = s.ReadRows(ctx, TableSettings, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Get("key"))
	assert.Equal(t, "20", rows[0].Get("value"))
}

func TestUnknownColumnRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.AppendRows(context.Background(), TableSettings, []map[string]string{{"nope": "x"}})
	assert.Error(t, err)
}

func TestEnsureTablesAddsMissingHeaders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	extended := []Table{{Name: TableSettings, Headers: []string{"key", "value", "updated_at"}}}
	require.NoError(t, s.EnsureTables(ctx, extended))

	headers, err := s.Headers(ctx, TableSettings)
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "value", "updated_at"}, headers)
}

func TestPostsRoundTripAndIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 21, 5, 0, 0, time.UTC)

	require.NoError(t, s.AppendPosts(ctx, []types.Post{
		{PostID: "p1", AccountID: "acc-1", Text: "hello #go", Timestamp: ts,
			Metrics: types.Metrics{Views: 100, Likes: 3, Shares: 9}, EngagementRate: 3},
		{PostID: "p2", AccountID: "acc-2", Timestamp: ts},
	}))

	posts, err := s.Posts(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello #go", posts[0].Text)
	assert.Equal(t, types.MediaTypeText, posts[0].MediaType)
	assert.Equal(t, int64(9), posts[0].Shares)
	assert.True(t, ts.Equal(posts[0].Timestamp))

	index, err := s.PostIndex(ctx, "acc-1")
	require.NoError(t, err)
	require.Contains(t, index, "p1")
	assert.NotContains(t, index, "p2")

	fetched := ts.Add(time.Hour)
	require.NoError(t, s.UpdatePostMetrics(ctx, index["p1"].RowIndex, types.Metrics{Views: 200, Likes: 10}, 5, fetched))

	posts, err = s.Posts(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), posts[0].Views)
	assert.Equal(t, int64(0), posts[0].Shares)
	assert.Equal(t, 5.0, posts[0].EngagementRate)
	assert.Equal(t, "hello #go", posts[0].Text)
	assert.True(t, fetched.Equal(posts[0].FetchedAt))
}

func TestReplaceTimeSlotsOnlyTouchesAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var row types.TimeSlotRow
	row.Weekday = "Monday"
	row.Hours[21] = 4.25
	require.NoError(t, s.ReplaceTimeSlots(ctx, "acc-1", []types.TimeSlotRow{row}))
	require.NoError(t, s.ReplaceTimeSlots(ctx, "acc-2", []types.TimeSlotRow{row}))

	row.Hours[21] = 1.5
	require.NoError(t, s.ReplaceTimeSlots(ctx, "acc-1", []types.TimeSlotRow{row}))

	got, err := s.TimeSlots(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.5, got[0].Hours[21])

	other, err := s.TimeSlots(ctx, "acc-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 4.25, other[0].Hours[21])
}

func TestUpsertGrowthScoreByDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := types.GrowthScore{Date: "2025-03-01", AccountID: "acc-1", Total: 40, Details: types.GrowthDetails{PostCount: 3}}
	require.NoError(t, s.UpsertGrowthScore(ctx, g))
	g.Total = 55
	require.NoError(t, s.UpsertGrowthScore(ctx, g))
	require.NoError(t, s.UpsertGrowthScore(ctx, types.GrowthScore{Date: "2025-03-02", AccountID: "acc-1", Total: 10}))

	scores, err := s.GrowthScores(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 55, scores[0].Total)
	assert.Equal(t, 3, scores[0].Details.PostCount)
}

func TestDeleteAccountRemovesOwnedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccount(ctx, types.Account{AccountID: "acc-1", UserID: "1"}))
	require.NoError(t, s.SaveAccount(ctx, types.Account{AccountID: "acc-2", UserID: "2"}))
	require.NoError(t, s.AppendPosts(ctx, []types.Post{{PostID: "p1", AccountID: "acc-1"}, {PostID: "p2", AccountID: "acc-2"}}))

	require.NoError(t, s.DeleteAccount(ctx, "acc-1"))

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-2", accounts[0].AccountID)

	posts, err := s.Posts(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSettingsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.Setting(ctx, SettingActiveAccount)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting(ctx, SettingActiveAccount, "acc-1"))
	require.NoError(t, s.SetSetting(ctx, SettingActiveAccount, "acc-2"))

	v, err = s.Setting(ctx, SettingActiveAccount)
	require.NoError(t, err)
	assert.Equal(t, "acc-2", v)
}

func TestReadErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("posts")`)).WillReturnError(errors.New("disk I/O error"))

	s := NewWithDB(db)
	_, err = s.Posts(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRowsRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tableInfo := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "row_index", "INTEGER", 0, nil, 1).
			AddRow(1, "account_id", "TEXT", 1, "''", 0).
			AddRow(2, "weekday", "TEXT", 1, "''", 0)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("time_slots")`)).WillReturnRows(tableInfo())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT row_index`)).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"row_index", "account_id", "weekday"}).AddRow(int64(7), "acc-1", "Sunday"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "time_slots"`)).
		WithArgs(int64(7)).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	s := NewWithDB(db)
	err = s.ReplaceRows(context.Background(), TableTimeSlots, ForAccount("acc-1"),
		[]map[string]string{{"account_id": "acc-1", "weekday": "Sunday"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
