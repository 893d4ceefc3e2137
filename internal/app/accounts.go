package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// ErrAccountNotFound is returned for an unknown account id or when no account is connected
var ErrAccountNotFound = fmt.Errorf("account %w", types.ErrNotFound)

const tokenWarningDays = 5

// AddAccountRequest connects an account from a long-lived access token
type AddAccountRequest struct {
	AccessToken  string    `json:"accessToken"`
	TokenExpires time.Time `json:"tokenExpires"`
}

// AddAccountResult reports the stored account
type AddAccountResult struct {
	Account types.Account `json:"account"`
	IsNew   bool          `json:"isNew"`
}

// TokenWarning flags an account whose token expires within five days
type TokenWarning struct {
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	DaysLeft  int    `json:"daysLeft"`
	Expired   bool   `json:"expired"`
}

// Accounts lists every connected account
func (a *App) Accounts(ctx context.Context) ([]types.Account, error) {
	accounts, err := a.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}

// Account returns the account with id
func (a *App) Account(ctx context.Context, id string) (types.Account, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return types.Account{}, err
	}
	for _, acct := range accounts {
		if acct.AccountID == id {
			return acct, nil
		}
	}
	return types.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

// ResolveAccount returns the account with id, or the active account when id is empty
func (a *App) ResolveAccount(ctx context.Context, id string) (types.Account, error) {
	if id == "" {
		return a.ActiveAccount(ctx)
	}
	return a.Account(ctx, id)
}

// AddAccount stores the account owning the token, looked up with the
// profile endpoint. Reconnecting a known user updates its row in place.
// The account becomes the active one.
func (a *App) AddAccount(ctx context.Context, req AddAccountRequest) (AddAccountResult, error) {
	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		return AddAccountResult{}, fmt.Errorf("%w: access token is required", types.ErrInvalidInput)
	}

	profile, err := a.client.Me(ctx, token)
	if err != nil {
		return AddAccountResult{}, err
	}
	if profile.ID == "" {
		return AddAccountResult{}, fmt.Errorf("profile response has no user id")
	}

	accounts, err := a.Accounts(ctx)
	if err != nil {
		return AddAccountResult{}, err
	}

	acct := types.Account{
		AccountID:     "acc-" + profile.ID,
		AccessToken:   token,
		UserID:        profile.ID,
		Username:      profile.Username,
		ProfilePicURL: profile.ProfilePicURL,
		TokenExpires:  req.TokenExpires,
		CreatedAt:     a.now(),
	}
	isNew := true
	for _, existing := range accounts {
		if existing.UserID == profile.ID {
			acct.AccountID = existing.AccountID
			acct.CreatedAt = existing.CreatedAt
			isNew = false
			break
		}
	}

	if err := a.store.SaveAccount(ctx, acct); err != nil {
		return AddAccountResult{}, fmt.Errorf("failed to store account: %w", err)
	}
	if err := a.store.SetSetting(ctx, store.SettingActiveAccount, acct.AccountID); err != nil {
		return AddAccountResult{}, fmt.Errorf("failed to activate account: %w", err)
	}

	a.log.WithFields(logging.Fields{"account": acct.AccountID, "username": acct.Username, "new": isNew}).Info("account connected")
	return AddAccountResult{Account: acct, IsNew: isNew}, nil
}

// RemoveAccount deletes the account and all of its stored data. When it
// was active, the first remaining account becomes active.
func (a *App) RemoveAccount(ctx context.Context, id string) error {
	if _, err := a.Account(ctx, id); err != nil {
		return err
	}
	// Wait out a running refresh so it cannot write rows after the delete.
	release, err := a.locker.Lock(ctx, lock.AccountKey(id))
	if err != nil {
		return err
	}
	defer release()

	if err := a.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	remaining, err := a.Accounts(ctx)
	if err != nil {
		return err
	}
	next := ""
	if len(remaining) > 0 {
		next = remaining[0].AccountID
	}
	if err := a.store.SetSetting(ctx, store.SettingActiveAccount, next); err != nil {
		return fmt.Errorf("failed to update active account: %w", err)
	}

	a.log.WithField("account", id).Info("account removed")
	return nil
}

// SetActiveAccount makes id the default account
func (a *App) SetActiveAccount(ctx context.Context, id string) (types.Account, error) {
	acct, err := a.Account(ctx, id)
	if err != nil {
		return types.Account{}, err
	}
	if err := a.store.SetSetting(ctx, store.SettingActiveAccount, id); err != nil {
		return types.Account{}, fmt.Errorf("failed to activate account: %w", err)
	}
	return acct, nil
}

// ActiveAccount returns the default account, falling back to the first
// connected one when the setting is unset or stale.
func (a *App) ActiveAccount(ctx context.Context) (types.Account, error) {
	active, err := a.store.Setting(ctx, store.SettingActiveAccount)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to read settings: %w", err)
	}
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return types.Account{}, err
	}
	if len(accounts) == 0 {
		return types.Account{}, ErrAccountNotFound
	}
	for _, acct := range accounts {
		if acct.AccountID == active {
			return acct, nil
		}
	}
	return accounts[0], nil
}

// TokenWarnings lists accounts whose token expires within five days
func (a *App) TokenWarnings(ctx context.Context) ([]TokenWarning, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	return tokenWarnings(accounts, a.now()), nil
}

func tokenWarnings(accounts []types.Account, now time.Time) []TokenWarning {
	warnings := []TokenWarning{}
	for _, acct := range accounts {
		if acct.TokenExpires.IsZero() {
			continue
		}
		daysLeft := int(math.Ceil(acct.TokenExpires.Sub(now).Hours() / 24))
		if daysLeft > tokenWarningDays {
			continue
		}
		warnings = append(warnings, TokenWarning{
			AccountID: acct.AccountID,
			Username:  acct.Username,
			DaysLeft:  max(daysLeft, 0),
			Expired:   daysLeft <= 0,
		})
	}
	return warnings
}
