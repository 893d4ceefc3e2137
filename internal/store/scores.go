package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// GrowthScores returns the stored scores of an account in row order
func (s *Store) GrowthScores(ctx context.Context, accountID string) ([]types.GrowthScore, error) {
	rows, err := s.ReadRows(ctx, TableGrowthScores, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.GrowthScore, 0, len(rows))
	for _, r := range rows {
		g := types.GrowthScore{
			Date:      r.Get("date"),
			AccountID: r.Get(ColAccountID),
			Total:     int(parseInt(r.Get("score"))),
			Follower:  int(parseInt(r.Get("follower_score"))),
			ERTrend:   int(parseInt(r.Get("er_trend_score"))),
			Frequency: int(parseInt(r.Get("frequency_score"))),
			AIUsage:   int(parseInt(r.Get("ai_usage_score"))),
		}
		if raw := r.Get("details_json"); raw != "" {
			// Unreadable details leave the zero value; the scores still stand.
			_ = json.Unmarshal([]byte(raw), &g.Details)
		}
		out = append(out, g)
	}
	return out, nil
}

// UpsertGrowthScore writes the score keyed by (account, date)
func (s *Store) UpsertGrowthScore(ctx context.Context, g types.GrowthScore) error {
	details, err := json.Marshal(g.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal score details: %w", err)
	}
	values := map[string]string{
		"date":            g.Date,
		ColAccountID:      g.AccountID,
		"score":           formatInt(int64(g.Total)),
		"follower_score":  formatInt(int64(g.Follower)),
		"er_trend_score":  formatInt(int64(g.ERTrend)),
		"frequency_score": formatInt(int64(g.Frequency)),
		"ai_usage_score":  formatInt(int64(g.AIUsage)),
		"details_json":    string(details),
	}
	return s.upsert(ctx, TableGrowthScores, ForAccount(g.AccountID),
		func(r Row) bool { return r.Get("date") == g.Date }, values)
}
