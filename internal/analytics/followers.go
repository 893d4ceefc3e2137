package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// FollowerSource reports an account's current follower count
type FollowerSource interface {
	FollowerCount(ctx context.Context, acct types.Account) (int64, error)
}

// FollowerStore persists daily follower snapshots
type FollowerStore interface {
	FollowerSnapshots(ctx context.Context, accountID string) ([]types.FollowerSnapshot, error)
	UpsertFollowerSnapshot(ctx context.Context, f types.FollowerSnapshot) error
}

// FollowerResult is the outcome of recording one account
type FollowerResult struct {
	AccountID string                  `json:"accountId"`
	Snapshot  *types.FollowerSnapshot `json:"snapshot,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Followers records and reads daily follower history
type Followers struct {
	source FollowerSource
	store  FollowerStore
	loc    *time.Location
	log    logging.Logger
	now    func() time.Time
}

// NewFollowers creates a follower recorder dating snapshots in loc
func NewFollowers(source FollowerSource, st FollowerStore, loc *time.Location, logger logging.Logger) *Followers {
	return &Followers{source: source, store: st, loc: loc, log: logging.Component(logger, "followers"), now: time.Now}
}

// RecordAll records today's snapshot for every authenticated account.
// A failing account is logged and skipped.
func (f *Followers) RecordAll(ctx context.Context, accounts []types.Account) []FollowerResult {
	results := make([]FollowerResult, 0, len(accounts))
	for _, acct := range accounts {
		if !acct.Authenticated() {
			continue
		}
		snap, err := f.Record(ctx, acct)
		if err != nil {
			f.log.WithField("account", acct.AccountID).WithError(err).Warn("failed to record followers")
			results = append(results, FollowerResult{AccountID: acct.AccountID, Error: err.Error()})
			continue
		}
		results = append(results, FollowerResult{AccountID: acct.AccountID, Snapshot: &snap})
	}
	return results
}

// Record upserts today's follower snapshot with its daily change and the
// percentage change against the latest snapshot at least a week old.
func (f *Followers) Record(ctx context.Context, acct types.Account) (types.FollowerSnapshot, error) {
	count, err := f.source.FollowerCount(ctx, acct)
	if err != nil {
		return types.FollowerSnapshot{}, err
	}
	history, err := f.store.FollowerSnapshots(ctx, acct.AccountID)
	if err != nil {
		return types.FollowerSnapshot{}, fmt.Errorf("failed to read followers: %w", err)
	}

	now := f.now().In(f.loc)
	today := now.Format(store.DateLayout)
	weekAgo := now.AddDate(0, 0, -7).Format(store.DateLayout)

	var prev, base *types.FollowerSnapshot
	for _, s := range sortedSnapshots(history) {
		if s.Date < today {
			prev = &s
		}
		if s.Date <= weekAgo {
			base = &s
		}
	}

	snap := types.FollowerSnapshot{Date: today, AccountID: acct.AccountID, Followers: count}
	if prev != nil {
		snap.DailyChange = count - prev.Followers
	}
	if base != nil && base.Followers > 0 {
		snap.WeeklyPct = round(float64(count-base.Followers)/float64(base.Followers)*100, 2)
	}

	if err := f.store.UpsertFollowerSnapshot(ctx, snap); err != nil {
		return types.FollowerSnapshot{}, fmt.Errorf("failed to store followers: %w", err)
	}
	return snap, nil
}

// History returns the snapshots of the last days days, oldest first
func (f *Followers) History(ctx context.Context, acct types.Account, days int) ([]types.FollowerSnapshot, error) {
	history, err := f.store.FollowerSnapshots(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read followers: %w", err)
	}
	sorted := sortedSnapshots(history)
	if days <= 0 {
		return sorted, nil
	}
	cutoff := f.now().In(f.loc).AddDate(0, 0, -days).Format(store.DateLayout)
	var out []types.FollowerSnapshot
	for _, s := range sorted {
		if s.Date >= cutoff {
			out = append(out, s)
		}
	}
	return out, nil
}
