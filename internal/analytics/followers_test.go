package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

type fakeFollowers map[string]int64

func (f fakeFollowers) FollowerCount(ctx context.Context, acct types.Account) (int64, error) {
	n, ok := f[acct.AccountID]
	if !ok {
		return 0, errors.New("no such account")
	}
	return n, nil
}

func TestFollowersRecordComputesChanges(t *testing.T) {
	ctx := context.Background()
	st := newAnalyticsStore(t)
	for _, s := range []types.FollowerSnapshot{
		{Date: "2025-03-09", AccountID: "acc-1", Followers: 1010},
		{Date: "2025-03-02", AccountID: "acc-1", Followers: 1000},
	} {
		require.NoError(t, st.UpsertFollowerSnapshot(ctx, s))
	}

	f := NewFollowers(fakeFollowers{"acc-1": 1050}, st, time.UTC, logging.Discard())
	f.now = func() time.Time { return growthNow }

	snap, err := f.Record(ctx, refreshAccount)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", snap.Date)
	assert.Equal(t, int64(40), snap.DailyChange)
	assert.Equal(t, 5.0, snap.WeeklyPct)

	// a second fetch the same day replaces the row
	f.source = fakeFollowers{"acc-1": 1060}
	_, err = f.Record(ctx, refreshAccount)
	require.NoError(t, err)

	history, err := f.History(ctx, refreshAccount, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "2025-03-02", history[0].Date)
	assert.Equal(t, int64(1060), history[2].Followers)

	recent, err := f.History(ctx, refreshAccount, 7)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestFollowersRecordAllSkipsAndReports(t *testing.T) {
	st := newAnalyticsStore(t)
	f := NewFollowers(fakeFollowers{"acc-1": 10}, st, time.UTC, logging.Discard())

	results := f.RecordAll(context.Background(), []types.Account{
		refreshAccount,
		{AccountID: "acc-2", UserID: "u2", AccessToken: "tok"},
		{AccountID: "acc-3"},
	})
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Snapshot)
	assert.Equal(t, int64(10), results[0].Snapshot.Followers)
	assert.Zero(t, results[0].Snapshot.DailyChange)
	assert.Equal(t, "acc-2", results[1].AccountID)
	assert.NotEmpty(t, results[1].Error)
}
