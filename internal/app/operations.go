package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant"
	"github.com/ibeckermayer/threadpulse/internal/retention"
	"github.com/ibeckermayer/threadpulse/internal/scheduler"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// RefreshOutcome is one account's result in a refresh of every account
type RefreshOutcome struct {
	AccountID string                   `json:"accountId"`
	Result    *analytics.RefreshResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// GrowthOutcome is one account's result in a scoring run over every account
type GrowthOutcome struct {
	AccountID string                  `json:"accountId"`
	Result    *analytics.GrowthResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Refresh fetches and merges the account's posts
func (a *App) Refresh(ctx context.Context, acct types.Account) (analytics.RefreshResult, error) {
	return a.refresher.Run(ctx, acct)
}

// RefreshAll refreshes every authenticated account one after another.
// A failing account does not stop the others.
func (a *App) RefreshAll(ctx context.Context) ([]RefreshOutcome, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	outcomes := make([]RefreshOutcome, 0, len(accounts))
	for _, acct := range accounts {
		if !acct.Authenticated() {
			continue
		}
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		res, err := a.refresher.Run(ctx, acct)
		if err != nil {
			a.log.WithField("account", acct.AccountID).WithError(err).Error("refresh failed")
			outcomes = append(outcomes, RefreshOutcome{AccountID: acct.AccountID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, RefreshOutcome{AccountID: acct.AccountID, Result: &res})
	}
	return outcomes, nil
}

// Analytics returns the account's stored posts and summary for a period
func (a *App) Analytics(ctx context.Context, acct types.Account, periodDays int) (analytics.View, error) {
	return a.reader.Analytics(ctx, acct, periodDays)
}

// GenerateTimeSlots rebuilds the account's weekday x hour matrix
func (a *App) GenerateTimeSlots(ctx context.Context, acct types.Account) (analytics.TimeSlotResult, error) {
	return a.timeSlots.Generate(ctx, acct)
}

// TimeSlots returns the stored matrix
func (a *App) TimeSlots(ctx context.Context, acct types.Account) (analytics.TimeSlotResult, error) {
	return a.timeSlots.Load(ctx, acct)
}

// Buzz contrasts the account's best and worst recent posts
func (a *App) Buzz(ctx context.Context, acct types.Account, days int) (analytics.BuzzReport, error) {
	return a.buzz.Analyze(ctx, acct, days)
}

// CalculateGrowth scores the account for today
func (a *App) CalculateGrowth(ctx context.Context, acct types.Account) (analytics.GrowthResult, error) {
	return a.growth.Calculate(ctx, acct)
}

// LatestGrowth returns the newest stored score
func (a *App) LatestGrowth(ctx context.Context, acct types.Account) (analytics.GrowthResult, error) {
	return a.growth.Latest(ctx, acct)
}

// CalculateGrowthAll scores every account for today
func (a *App) CalculateGrowthAll(ctx context.Context) ([]GrowthOutcome, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	outcomes := make([]GrowthOutcome, 0, len(accounts))
	for _, acct := range accounts {
		res, err := a.growth.Calculate(ctx, acct)
		if err != nil {
			a.log.WithField("account", acct.AccountID).WithError(err).Error("growth score failed")
			outcomes = append(outcomes, GrowthOutcome{AccountID: acct.AccountID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, GrowthOutcome{AccountID: acct.AccountID, Result: &res})
	}
	return outcomes, nil
}

// FetchUserInsights pulls account-level totals for the last days days
func (a *App) FetchUserInsights(ctx context.Context, acct types.Account, days int) (types.UserInsight, error) {
	return analytics.UserInsights(ctx, a.client, a.store, acct, days, a.loc)
}

// RecordFollowers records today's follower count of one account
func (a *App) RecordFollowers(ctx context.Context, acct types.Account) (types.FollowerSnapshot, error) {
	return a.followers.Record(ctx, acct)
}

// RecordAllFollowers records today's follower count of every account
func (a *App) RecordAllFollowers(ctx context.Context) ([]analytics.FollowerResult, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	return a.followers.RecordAll(ctx, accounts), nil
}

// FollowerHistory returns the account's daily follower snapshots
func (a *App) FollowerHistory(ctx context.Context, acct types.Account, days int) ([]types.FollowerSnapshot, error) {
	return a.followers.History(ctx, acct, days)
}

// CheckIn records today's check-in
func (a *App) CheckIn(ctx context.Context, acct types.Account) (retention.CheckInResult, error) {
	return a.checkIns(ctx).CheckIn(ctx, acct)
}

// SetGoal creates a goal
func (a *App) SetGoal(ctx context.Context, acct types.Account, req retention.GoalRequest) (types.Goal, error) {
	return a.goals.Set(ctx, acct, req)
}

// Goals lists the open goals with progress
func (a *App) Goals(ctx context.Context, acct types.Account) ([]retention.GoalProgress, error) {
	return a.goals.List(ctx, acct)
}

// DeleteGoal removes a goal
func (a *App) DeleteGoal(ctx context.Context, acct types.Account, id string) error {
	return a.goals.Delete(ctx, acct, id)
}

// GenerateWeeklyReport builds last week's report and mails it when email is configured
func (a *App) GenerateWeeklyReport(ctx context.Context, acct types.Account) (retention.WeeklyResult, error) {
	return a.weekly(ctx).Generate(ctx, acct, a.notifyAddress(ctx))
}

// GenerateAllWeeklyReports builds last week's report for every account
func (a *App) GenerateAllWeeklyReports(ctx context.Context) ([]retention.WeeklyResult, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	return a.weekly(ctx).GenerateAll(ctx, accounts, a.notifyAddress(ctx)), nil
}

// WeeklyReports lists stored reports, newest first
func (a *App) WeeklyReports(ctx context.Context, acct types.Account) ([]types.WeeklyReport, error) {
	return a.weekly(ctx).List(ctx, acct)
}

// WeeklyReport returns the report offset weeks back, or nil
func (a *App) WeeklyReport(ctx context.Context, acct types.Account, offset int) (*types.WeeklyReport, error) {
	return a.weekly(ctx).Get(ctx, acct, offset)
}

// GeneratePosts drafts posts with the assistant
func (a *App) GeneratePosts(ctx context.Context, acct types.Account, req assistant.GenerateRequest) (assistant.Generation, error) {
	asst, err := a.Assistant(ctx)
	if err != nil {
		return assistant.Generation{}, err
	}
	return asst.GeneratePosts(ctx, acct, req)
}

// RefinePost returns variations of a draft
func (a *App) RefinePost(ctx context.Context, req assistant.RefineRequest) ([]assistant.Draft, error) {
	asst, err := a.Assistant(ctx)
	if err != nil {
		return nil, err
	}
	return asst.Refine(ctx, req)
}

// Settings are the user-editable values kept in the store
type Settings struct {
	LLMConfigured bool   `json:"llmConfigured"`
	NotifyEmail   string `json:"notifyEmail"`
	EmailEnabled  bool   `json:"emailEnabled"`
}

// SettingsUpdate changes stored settings; nil fields are left alone
type SettingsUpdate struct {
	LLMAPIKey   *string `json:"llmApiKey"`
	NotifyEmail *string `json:"notifyEmail"`
}

// Settings returns the current settings without secrets
func (a *App) Settings(ctx context.Context) (Settings, error) {
	_, err := a.Assistant(ctx)
	switch {
	case err == nil, errors.Is(err, assistant.ErrNotConfigured):
	default:
		return Settings{}, err
	}
	return Settings{
		LLMConfigured: err == nil,
		NotifyEmail:   a.notifyAddress(ctx),
		EmailEnabled:  a.notifier != nil,
	}, nil
}

// UpdateSettings stores the given settings
func (a *App) UpdateSettings(ctx context.Context, u SettingsUpdate) (Settings, error) {
	if u.NotifyEmail != nil {
		addr := strings.TrimSpace(*u.NotifyEmail)
		if addr != "" && !strings.Contains(addr, "@") {
			return Settings{}, fmt.Errorf("%w: %q is not an email address", types.ErrInvalidInput, addr)
		}
		if err := a.store.SetSetting(ctx, store.SettingNotifyEmail, addr); err != nil {
			return Settings{}, fmt.Errorf("failed to store settings: %w", err)
		}
	}
	if u.LLMAPIKey != nil {
		if err := a.store.SetSetting(ctx, store.SettingLLMAPIKey, strings.TrimSpace(*u.LLMAPIKey)); err != nil {
			return Settings{}, fmt.Errorf("failed to store settings: %w", err)
		}
	}
	return a.Settings(ctx)
}

// Jobs returns the recurring tasks for the scheduler
func (a *App) Jobs() scheduler.Jobs {
	return scheduler.Jobs{
		Refresh: func(ctx context.Context) error {
			outcomes, err := a.RefreshAll(ctx)
			if err != nil {
				return err
			}
			return failures("refresh", len(outcomes), countErrors(outcomes, func(o RefreshOutcome) string { return o.Error }))
		},
		Followers: func(ctx context.Context) error {
			results, err := a.RecordAllFollowers(ctx)
			if err != nil {
				return err
			}
			return failures("followers", len(results), countErrors(results, func(r analytics.FollowerResult) string { return r.Error }))
		},
		Growth: func(ctx context.Context) error {
			outcomes, err := a.CalculateGrowthAll(ctx)
			if err != nil {
				return err
			}
			return failures("growth score", len(outcomes), countErrors(outcomes, func(o GrowthOutcome) string { return o.Error }))
		},
		Weekly: func(ctx context.Context) error {
			results, err := a.GenerateAllWeeklyReports(ctx)
			if err != nil {
				return err
			}
			return failures("weekly report", len(results), countErrors(results, func(r retention.WeeklyResult) string { return r.Error }))
		},
	}
}

func countErrors[T any](items []T, errOf func(T) string) int {
	n := 0
	for _, item := range items {
		if errOf(item) != "" {
			n++
		}
	}
	return n
}

func failures(what string, total, failed int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%s failed for %d of %d accounts", what, failed, total)
}
