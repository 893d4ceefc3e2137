package store

import "context"

// Setting keys
const (
	SettingActiveAccount = "active_account"
	SettingLLMAPIKey     = "llm_api_key"
	SettingNotifyEmail   = "notify_email"
)

// Setting returns the value stored under key, or "" when unset
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	rows, err := s.ReadRows(ctx, TableSettings, Filter{Column: "key", Value: key})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Get("value"), nil
}

// SetSetting stores value under key
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.upsert(ctx, TableSettings, Filter{Column: "key", Value: key},
		func(Row) bool { return true },
		map[string]string{"key": key, "value": value})
}
