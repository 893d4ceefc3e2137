package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// CheckIns returns the check-in history of an account in row order
func (s *Store) CheckIns(ctx context.Context, accountID string) ([]types.CheckIn, error) {
	rows, err := s.ReadRows(ctx, TableCheckIns, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.CheckIn, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.CheckIn{
			Date:             r.Get("date"),
			AccountID:        r.Get(ColAccountID),
			Streak:           int(parseInt(r.Get("streak"))),
			Message:          r.Get("message"),
			RecommendedTime:  r.Get("recommended_time"),
			RecommendedTheme: r.Get("recommended_theme"),
		})
	}
	return out, nil
}

// AppendCheckIn records a check-in
func (s *Store) AppendCheckIn(ctx context.Context, c types.CheckIn) error {
	return s.AppendRows(ctx, TableCheckIns, []map[string]string{{
		"date":              c.Date,
		ColAccountID:        c.AccountID,
		"streak":            formatInt(int64(c.Streak)),
		"message":           c.Message,
		"recommended_time":  c.RecommendedTime,
		"recommended_theme": c.RecommendedTheme,
	}})
}

// Goals returns every goal of an account in row order
func (s *Store) Goals(ctx context.Context, accountID string) ([]types.Goal, error) {
	rows, err := s.ReadRows(ctx, TableGoals, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.Goal, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Goal{
			ID:         r.Get("id"),
			AccountID:  r.Get(ColAccountID),
			Type:       r.Get("type"),
			Label:      r.Get("label"),
			Target:     parseFloat(r.Get("target")),
			Current:    parseFloat(r.Get("current")),
			Achieved:   parseBool(r.Get("achieved")),
			CreatedAt:  parseTime(r.Get("created_at")),
			AchievedAt: parseTime(r.Get("achieved_at")),
		})
	}
	return out, nil
}

// SaveGoal inserts the goal or overwrites the row with the same id
func (s *Store) SaveGoal(ctx context.Context, g types.Goal) error {
	values := map[string]string{
		"id":          g.ID,
		ColAccountID:  g.AccountID,
		"type":        g.Type,
		"label":       g.Label,
		"target":      formatFloat(g.Target),
		"current":     formatFloat(g.Current),
		"achieved":    formatBool(g.Achieved),
		"created_at":  formatTime(g.CreatedAt),
		"achieved_at": formatTime(g.AchievedAt),
	}
	return s.upsert(ctx, TableGoals, ForAccount(g.AccountID),
		func(r Row) bool { return r.Get("id") == g.ID }, values)
}

// DeleteGoal removes one goal; deleting an unknown id is not an error
func (s *Store) DeleteGoal(ctx context.Context, accountID, id string) error {
	rows, err := s.ReadRows(ctx, TableGoals, ForAccount(accountID))
	if err != nil {
		return err
	}
	var indexes []int64
	for _, r := range rows {
		if r.Get("id") == id {
			indexes = append(indexes, r.Index)
		}
	}
	return s.DeleteRows(ctx, TableGoals, indexes)
}

// WeeklyReports returns the stored reports of an account in row order
func (s *Store) WeeklyReports(ctx context.Context, accountID string) ([]types.WeeklyReport, error) {
	rows, err := s.ReadRows(ctx, TableWeeklyReports, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.WeeklyReport, 0, len(rows))
	for _, r := range rows {
		rep := types.WeeklyReport{
			WeekStart:       r.Get("week_start"),
			WeekEnd:         r.Get("week_end"),
			AccountID:       r.Get(ColAccountID),
			FollowersStart:  parseInt(r.Get("followers_start")),
			FollowersEnd:    parseInt(r.Get("followers_end")),
			FollowersChange: parseInt(r.Get("followers_change")),
			Totals: types.Metrics{
				Views:   parseInt(r.Get("total_views")),
				Likes:   parseInt(r.Get("total_likes")),
				Replies: parseInt(r.Get("total_replies")),
				Reposts: parseInt(r.Get("total_reposts")),
				Quotes:  parseInt(r.Get("total_quotes")),
			},
			AvgER:     parseFloat(r.Get("avg_er")),
			PostCount: int(parseInt(r.Get("post_count"))),
			AISummary: r.Get("ai_summary"),
			CreatedAt: parseTime(r.Get("created_at")),
		}
		if raw := r.Get("top_posts_json"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &rep.TopPosts)
		}
		out = append(out, rep)
	}
	return out, nil
}

// AppendWeeklyReport stores a report
func (s *Store) AppendWeeklyReport(ctx context.Context, rep types.WeeklyReport) error {
	top, err := json.Marshal(rep.TopPosts)
	if err != nil {
		return fmt.Errorf("failed to marshal top posts: %w", err)
	}
	return s.AppendRows(ctx, TableWeeklyReports, []map[string]string{{
		"week_start":       rep.WeekStart,
		"week_end":         rep.WeekEnd,
		ColAccountID:       rep.AccountID,
		"followers_start":  formatInt(rep.FollowersStart),
		"followers_end":    formatInt(rep.FollowersEnd),
		"followers_change": formatInt(rep.FollowersChange),
		"total_views":      formatInt(rep.Totals.Views),
		"total_likes":      formatInt(rep.Totals.Likes),
		"total_replies":    formatInt(rep.Totals.Replies),
		"total_reposts":    formatInt(rep.Totals.Reposts),
		"total_quotes":     formatInt(rep.Totals.Quotes),
		"avg_er":           formatFloat(rep.AvgER),
		"post_count":       formatInt(int64(rep.PostCount)),
		"top_posts_json":   string(top),
		"ai_summary":       rep.AISummary,
		"created_at":       formatTime(rep.CreatedAt),
	}})
}
