package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

const (
	defaultBestHour = 21
	fallbackTheme   = "Share an everyday tip"
)

var fallbackMessages = []string{
	"One step forward today! Try writing a single post.",
	"Consistency wins. Check your analytics today!",
	"Posting around %02d:00 works well for you. Plan a theme for it.",
	"Look back at yesterday's numbers and use them in today's post!",
	"Write something that starts a conversation with your followers.",
}

// CheckInStore is the persistence daily check-ins need
type CheckInStore interface {
	CheckIns(ctx context.Context, accountID string) ([]types.CheckIn, error)
	AppendCheckIn(ctx context.Context, c types.CheckIn) error
	TimeSlots(ctx context.Context, accountID string) ([]types.TimeSlotRow, error)
}

// CheckInResult is today's check-in
type CheckInResult struct {
	types.CheckIn
	AlreadyCheckedIn bool `json:"alreadyCheckedIn"`
}

// CheckIns records one check-in per account and local day
type CheckIns struct {
	store  CheckInStore
	gen    Completer
	locker lock.Locker
	loc    *time.Location
	log    logging.Logger
	now    func() time.Time
	pick   func(n int) int
}

// NewCheckIns creates a check-in recorder. gen may be nil.
func NewCheckIns(st CheckInStore, gen Completer, locker lock.Locker, loc *time.Location, logger logging.Logger) *CheckIns {
	return &CheckIns{
		store:  st,
		gen:    gen,
		locker: locker,
		loc:    loc,
		log:    logging.Component(logger, "checkin"),
		now:    time.Now,
		pick:   rand.IntN,
	}
}

// CheckIn returns today's check-in, creating it on the first call of the day.
// The streak continues when yesterday has a check-in and restarts at 1
// otherwise.
func (c *CheckIns) CheckIn(ctx context.Context, acct types.Account) (CheckInResult, error) {
	release, err := c.locker.Lock(ctx, lock.AccountKey(acct.AccountID))
	if err != nil {
		return CheckInResult{}, err
	}
	defer release()

	history, err := c.store.CheckIns(ctx, acct.AccountID)
	if err != nil {
		return CheckInResult{}, fmt.Errorf("failed to read check-ins: %w", err)
	}

	now := c.now().In(c.loc)
	today := localDate(now, c.loc)
	yesterday := localDate(now.AddDate(0, 0, -1), c.loc)

	var last *types.CheckIn
	for i := range history {
		h := &history[i]
		if h.Date == today {
			return CheckInResult{CheckIn: *h, AlreadyCheckedIn: true}, nil
		}
		if h.Date < today && (last == nil || h.Date > last.Date) {
			last = h
		}
	}
	streak := 1
	if last != nil && last.Date == yesterday {
		streak = last.Streak + 1
	}

	hour := defaultBestHour
	if rows, err := c.store.TimeSlots(ctx, acct.AccountID); err != nil {
		c.log.WithError(err).Warn("failed to read time slots")
	} else if h, ok := analytics.BestHour(rows, analytics.Weekdays[now.Weekday()]); ok {
		hour = h
	}

	message, theme := c.advice(ctx, now.Weekday(), hour, streak)
	ci := types.CheckIn{
		Date:             today,
		AccountID:        acct.AccountID,
		Streak:           streak,
		Message:          message,
		RecommendedTime:  fmt.Sprintf("%02d:00", hour),
		RecommendedTheme: theme,
	}
	if err := c.store.AppendCheckIn(ctx, ci); err != nil {
		return CheckInResult{}, fmt.Errorf("failed to store check-in: %w", err)
	}
	return CheckInResult{CheckIn: ci}, nil
}

type adviceResponse struct {
	Message string `json:"message"`
	Theme   string `json:"theme"`
}

func (c *CheckIns) advice(ctx context.Context, day time.Weekday, hour, streak int) (string, string) {
	if c.gen != nil {
		prompt := fmt.Sprintf("You are a coach for running a Threads account.\n"+
			"Today is %s. The recommended posting hour is %02d:00. The user has checked in %d days in a row.\n\n"+
			"Give one short, encouraging and actionable piece of advice for today (at most 80 characters) "+
			"and a post theme idea (at most 20 characters) in this JSON format:\n"+
			"```json\n{\"message\": \"...\", \"theme\": \"...\"}\n```", day, hour, streak)
		raw, err := c.gen.Complete(ctx, prompt, providers.Options{Temperature: 0.9, MaxTokens: 256})
		if err == nil {
			var resp adviceResponse
			if err = json.Unmarshal([]byte(providers.ExtractJSON(raw)), &resp); err == nil && resp.Message != "" {
				return strings.TrimSpace(resp.Message), strings.TrimSpace(resp.Theme)
			}
		}
		c.log.WithError(err).Warn("falling back to a canned check-in message")
	}

	msg := fallbackMessages[c.pick(len(fallbackMessages))]
	if strings.Contains(msg, "%02d") {
		msg = fmt.Sprintf(msg, hour)
	}
	return msg, fallbackTheme
}
