package store

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// Accounts returns every connected account in row order
func (s *Store) Accounts(ctx context.Context) ([]types.Account, error) {
	rows, err := s.ReadRows(ctx, TableAccounts, Filter{})
	if err != nil {
		return nil, err
	}
	accounts := make([]types.Account, 0, len(rows))
	for _, r := range rows {
		if r.Get(ColAccountID) == "" {
			continue
		}
		accounts = append(accounts, accountFromRow(r))
	}
	return accounts, nil
}

// SaveAccount inserts the account or overwrites the row with the same id
func (s *Store) SaveAccount(ctx context.Context, a types.Account) error {
	return s.upsert(ctx, TableAccounts, ForAccount(a.AccountID), func(Row) bool { return true }, accountToRow(a))
}

// DeleteAccount removes the account row and every row it owns in account-scoped tables
func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	return s.withTx(ctx, func(q querier) error {
		tables := append([]string{TableAccounts}, accountScopedTables()...)
		for _, table := range tables {
			rows, err := readRows(ctx, q, table, ForAccount(accountID))
			if err != nil {
				return fmt.Errorf("failed to delete account %s: %w", accountID, err)
			}
			indexes := make([]int64, len(rows))
			for i, r := range rows {
				indexes[i] = r.Index
			}
			if err := deleteRows(ctx, q, table, indexes); err != nil {
				return err
			}
		}
		return nil
	})
}

func accountToRow(a types.Account) map[string]string {
	return map[string]string{
		ColAccountID:      a.AccountID,
		"access_token":    a.AccessToken,
		"user_id":         a.UserID,
		"username":        a.Username,
		"profile_pic_url": a.ProfilePicURL,
		"token_expires":   formatTime(a.TokenExpires),
		"created_at":      formatTime(a.CreatedAt),
	}
}

func accountFromRow(r Row) types.Account {
	return types.Account{
		AccountID:     r.Get(ColAccountID),
		AccessToken:   r.Get("access_token"),
		UserID:        r.Get("user_id"),
		Username:      r.Get("username"),
		ProfilePicURL: r.Get("profile_pic_url"),
		TokenExpires:  parseTime(r.Get("token_expires")),
		CreatedAt:     parseTime(r.Get("created_at")),
	}
}
