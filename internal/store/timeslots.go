package store

import (
	"context"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// TimeSlots returns the stored weekday rows of an account
func (s *Store) TimeSlots(ctx context.Context, accountID string) ([]types.TimeSlotRow, error) {
	rows, err := s.ReadRows(ctx, TableTimeSlots, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.TimeSlotRow, 0, len(rows))
	for _, r := range rows {
		row := types.TimeSlotRow{AccountID: r.Get(ColAccountID), Weekday: r.Get("weekday")}
		for h := 0; h < 24; h++ {
			row.Hours[h] = parseFloat(r.Get(hourColumn(h)))
		}
		out = append(out, row)
	}
	return out, nil
}

// ReplaceTimeSlots swaps the account's rows for rows in one transaction.
// Readers never observe a partially written matrix.
func (s *Store) ReplaceTimeSlots(ctx context.Context, accountID string, rows []types.TimeSlotRow) error {
	cells := make([]map[string]string, len(rows))
	for i, row := range rows {
		c := map[string]string{ColAccountID: accountID, "weekday": row.Weekday}
		for h, v := range row.Hours {
			c[hourColumn(h)] = formatFloat(v)
		}
		cells[i] = c
	}
	return s.ReplaceRows(ctx, TableTimeSlots, ForAccount(accountID), cells)
}
