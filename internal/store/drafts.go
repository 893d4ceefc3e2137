package store

import (
	"context"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// Drafts returns every draft of an account in row order
func (s *Store) Drafts(ctx context.Context, accountID string) ([]types.Draft, error) {
	rows, err := s.ReadRows(ctx, TableDrafts, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.Draft, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Draft{
			ID:          r.Get("id"),
			AccountID:   r.Get(ColAccountID),
			Text:        r.Get("text"),
			Kind:        r.Get("type"),
			Source:      r.Get("source"),
			Status:      r.Get("status"),
			ThreadID:    r.Get("thread_id"),
			ThreadOrder: int(parseInt(r.Get("thread_order"))),
			CreatedAt:   parseTime(r.Get("created_at")),
		})
	}
	return out, nil
}

// AppendDrafts stores drafts in one batch
func (s *Store) AppendDrafts(ctx context.Context, drafts []types.Draft) error {
	rows := make([]map[string]string, len(drafts))
	for i, d := range drafts {
		rows[i] = map[string]string{
			"id":           d.ID,
			ColAccountID:   d.AccountID,
			"text":         d.Text,
			"type":         d.Kind,
			"source":       d.Source,
			"status":       d.Status,
			"thread_id":    d.ThreadID,
			"thread_order": formatInt(int64(d.ThreadOrder)),
			"created_at":   formatTime(d.CreatedAt),
		}
	}
	return s.AppendRows(ctx, TableDrafts, rows)
}

// SetDraftStatus sets the status of the given drafts and returns how many changed
func (s *Store) SetDraftStatus(ctx context.Context, accountID string, ids []string, status string) (int, error) {
	set := idSet(ids)
	return s.updateMatching(ctx, TableDrafts, ForAccount(accountID),
		func(r Row) bool { return set[r.Get("id")] },
		map[string]string{"status": status})
}

// DeleteDrafts removes the given drafts and returns how many went
func (s *Store) DeleteDrafts(ctx context.Context, accountID string, ids []string) (int, error) {
	set := idSet(ids)
	return s.deleteMatching(ctx, TableDrafts, ForAccount(accountID),
		func(r Row) bool { return set[r.Get("id")] })
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
