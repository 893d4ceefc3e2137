package store

import (
	"context"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// AppendGenerations records assistant output in one batch
func (s *Store) AppendGenerations(ctx context.Context, entries []types.GenerationEntry) error {
	rows := make([]map[string]string, len(entries))
	for i, e := range entries {
		rows[i] = map[string]string{
			"id":               e.ID,
			"generated_at":     formatTime(e.GeneratedAt),
			ColAccountID:       e.AccountID,
			"theme":            e.Theme,
			"mode":             e.Mode,
			"post_text":        e.PostText,
			"reason":           e.Reason,
			"expected_er":      e.ExpectedER,
			"best_time":        e.BestTime,
			"media_advice":     e.MediaAdvice,
			"analysis_summary": e.AnalysisSummary,
		}
	}
	return s.AppendRows(ctx, TableGenerationLog, rows)
}

// Generations returns every log entry, including untagged ones written
// before accounts were tracked.
func (s *Store) Generations(ctx context.Context) ([]types.GenerationEntry, error) {
	rows, err := s.ReadRows(ctx, TableGenerationLog, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]types.GenerationEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.GenerationEntry{
			ID:              r.Get("id"),
			GeneratedAt:     parseTime(r.Get("generated_at")),
			AccountID:       r.Get(ColAccountID),
			Theme:           r.Get("theme"),
			Mode:            r.Get("mode"),
			PostText:        r.Get("post_text"),
			Reason:          r.Get("reason"),
			ExpectedER:      r.Get("expected_er"),
			BestTime:        r.Get("best_time"),
			MediaAdvice:     r.Get("media_advice"),
			AnalysisSummary: r.Get("analysis_summary"),
		})
	}
	return out, nil
}
