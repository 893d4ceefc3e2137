package store

import (
	"context"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// FollowerSnapshots returns the daily follower history of an account in row order
func (s *Store) FollowerSnapshots(ctx context.Context, accountID string) ([]types.FollowerSnapshot, error) {
	rows, err := s.ReadRows(ctx, TableFollowers, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.FollowerSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.FollowerSnapshot{
			Date:        r.Get("date"),
			AccountID:   r.Get(ColAccountID),
			Followers:   parseInt(r.Get("followers_count")),
			DailyChange: parseInt(r.Get("daily_change")),
			WeeklyPct:   parseFloat(r.Get("weekly_pct")),
		})
	}
	return out, nil
}

// UpsertFollowerSnapshot writes the snapshot keyed by (account, date)
func (s *Store) UpsertFollowerSnapshot(ctx context.Context, f types.FollowerSnapshot) error {
	values := map[string]string{
		"date":            f.Date,
		ColAccountID:      f.AccountID,
		"followers_count": formatInt(f.Followers),
		"daily_change":    formatInt(f.DailyChange),
		"weekly_pct":      formatFloat(f.WeeklyPct),
	}
	return s.upsert(ctx, TableFollowers, ForAccount(f.AccountID),
		func(r Row) bool { return r.Get("date") == f.Date }, values)
}

// AppendUserInsight records one account-level insight fetch
func (s *Store) AppendUserInsight(ctx context.Context, u types.UserInsight) error {
	return s.AppendRows(ctx, TableUserInsights, []map[string]string{{
		ColAccountID:      u.AccountID,
		"date":            u.Date,
		"views":           formatInt(u.Views),
		"likes":           formatInt(u.Likes),
		"replies":         formatInt(u.Replies),
		"reposts":         formatInt(u.Reposts),
		"quotes":          formatInt(u.Quotes),
		"clicks":          formatInt(u.Clicks),
		"followers_count": formatInt(u.Followers),
		"fetched_at":      formatTime(u.FetchedAt),
	}})
}

// UserInsights returns the recorded account-level insights in row order
func (s *Store) UserInsights(ctx context.Context, accountID string) ([]types.UserInsight, error) {
	rows, err := s.ReadRows(ctx, TableUserInsights, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.UserInsight, 0, len(rows))
	for _, r := range rows {
		u := types.UserInsight{
			AccountID: r.Get(ColAccountID),
			Date:      r.Get("date"),
			Clicks:    parseInt(r.Get("clicks")),
			Followers: parseInt(r.Get("followers_count")),
			FetchedAt: parseTime(r.Get("fetched_at")),
		}
		u.Views = parseInt(r.Get("views"))
		u.Likes = parseInt(r.Get("likes"))
		u.Replies = parseInt(r.Get("replies"))
		u.Reposts = parseInt(r.Get("reposts"))
		u.Quotes = parseInt(r.Get("quotes"))
		out = append(out, u)
	}
	return out, nil
}
