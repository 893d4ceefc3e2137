package retention

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/digest"
	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

const (
	weeklyTopPosts       = 3
	summaryFailedMessage = "(AI summary failed)"
)

// WeeklyStore is the persistence weekly reports need
type WeeklyStore interface {
	analytics.PostReader
	FollowerSnapshots(ctx context.Context, accountID string) ([]types.FollowerSnapshot, error)
	WeeklyReports(ctx context.Context, accountID string) ([]types.WeeklyReport, error)
	AppendWeeklyReport(ctx context.Context, rep types.WeeklyReport) error
}

// DigestSender delivers rendered reports
type DigestSender interface {
	SendDigest(ctx context.Context, d *digest.Digest, toAddr string) error
}

// WeeklyResult is the outcome of generating one account's report
type WeeklyResult struct {
	AccountID        string              `json:"accountId"`
	Report           *types.WeeklyReport `json:"report,omitempty"`
	AlreadyGenerated bool                `json:"alreadyGenerated"`
	Emailed          bool                `json:"emailed"`
	Error            string              `json:"error,omitempty"`
}

// Weekly builds, stores and emails weekly reports
type Weekly struct {
	store   WeeklyStore
	gen     Completer
	builder *digest.Builder
	sender  DigestSender
	locker  lock.Locker
	loc     *time.Location
	log     logging.Logger
	now     func() time.Time
}

// NewWeekly creates a weekly reporter. gen and sender may be nil; builder is
// only used when sender is set.
func NewWeekly(st WeeklyStore, gen Completer, builder *digest.Builder, sender DigestSender, locker lock.Locker, loc *time.Location, logger logging.Logger) *Weekly {
	return &Weekly{
		store:   st,
		gen:     gen,
		builder: builder,
		sender:  sender,
		locker:  locker,
		loc:     loc,
		log:     logging.Component(logger, "weekly"),
		now:     time.Now,
	}
}

// LastWeek returns the most recent complete Sunday-to-Sunday week before t
func LastWeek(t time.Time, loc *time.Location) (start, end time.Time) {
	day := midnight(t, loc)
	end = day.AddDate(0, 0, -int(day.Weekday()))
	return end.AddDate(0, 0, -7), end
}

// Generate builds the report for the previous week. Reports are stored once
// per (account, week start); a repeated call returns the stored one.
func (w *Weekly) Generate(ctx context.Context, acct types.Account, toAddr string) (WeeklyResult, error) {
	if !acct.Authenticated() {
		return WeeklyResult{}, analytics.ErrNotAuthenticated
	}
	start, end := LastWeek(w.now(), w.loc)
	startDate, endDate := localDate(start, w.loc), localDate(end, w.loc)

	release, err := w.locker.Lock(ctx, lock.AccountKey(acct.AccountID))
	if err != nil {
		return WeeklyResult{}, err
	}
	defer release()

	existing, err := w.store.WeeklyReports(ctx, acct.AccountID)
	if err != nil {
		return WeeklyResult{}, fmt.Errorf("failed to read weekly reports: %w", err)
	}
	for i := range existing {
		if existing[i].WeekStart == startDate {
			return WeeklyResult{AccountID: acct.AccountID, Report: &existing[i], AlreadyGenerated: true}, nil
		}
	}

	posts, err := w.store.Posts(ctx, acct.AccountID)
	if err != nil {
		return WeeklyResult{}, fmt.Errorf("failed to read posts: %w", err)
	}
	var week []types.Post
	for _, p := range posts {
		if !p.Timestamp.IsZero() && !p.Timestamp.Before(start) && p.Timestamp.Before(end) {
			week = append(week, p)
		}
	}
	summary := analytics.Summarize(week)

	var top []types.Post
	for _, p := range week {
		if p.EngagementRate > 0 {
			top = append(top, p)
		}
	}
	analytics.SortByRate(top)
	if len(top) > weeklyTopPosts {
		top = top[:weeklyTopPosts]
	}

	snapshots, err := w.store.FollowerSnapshots(ctx, acct.AccountID)
	if err != nil {
		return WeeklyResult{}, fmt.Errorf("failed to read followers: %w", err)
	}
	sort.SliceStable(snapshots, func(i, j int) bool { return snapshots[i].Date < snapshots[j].Date })
	var fStart, fEnd int64
	found := false
	for _, s := range snapshots {
		if s.Date < startDate || s.Date > endDate {
			continue
		}
		if !found {
			fStart, found = s.Followers, true
		}
		fEnd = s.Followers
	}

	rep := types.WeeklyReport{
		WeekStart:       startDate,
		WeekEnd:         endDate,
		AccountID:       acct.AccountID,
		FollowersStart:  fStart,
		FollowersEnd:    fEnd,
		FollowersChange: fEnd - fStart,
		Totals:          summary.Totals,
		AvgER:           summary.EngagementRate,
		PostCount:       summary.PostCount,
		TopPosts:        top,
		CreatedAt:       w.now(),
	}
	if w.gen != nil && len(week) > 0 {
		rep.AISummary = w.summarize(ctx, rep)
	}

	if err := w.store.AppendWeeklyReport(ctx, rep); err != nil {
		return WeeklyResult{}, fmt.Errorf("failed to store weekly report: %w", err)
	}

	result := WeeklyResult{AccountID: acct.AccountID, Report: &rep}
	if w.sender != nil && w.builder != nil {
		if err := w.email(ctx, rep, acct.Username, toAddr); err != nil {
			w.log.WithField("account", acct.AccountID).WithError(err).Warn("failed to email weekly report")
		} else {
			result.Emailed = true
		}
	}
	return result, nil
}

// GenerateAll generates last week's report for every authenticated account.
// A failing account is logged and reported in its result.
func (w *Weekly) GenerateAll(ctx context.Context, accounts []types.Account, toAddr string) []WeeklyResult {
	results := make([]WeeklyResult, 0, len(accounts))
	for _, acct := range accounts {
		if !acct.Authenticated() {
			continue
		}
		res, err := w.Generate(ctx, acct, toAddr)
		if err != nil {
			w.log.WithField("account", acct.AccountID).WithError(err).Error("weekly report failed")
			results = append(results, WeeklyResult{AccountID: acct.AccountID, Error: err.Error()})
			continue
		}
		results = append(results, res)
	}
	return results
}

// List returns the stored reports, newest week first
func (w *Weekly) List(ctx context.Context, acct types.Account) ([]types.WeeklyReport, error) {
	reports, err := w.store.WeeklyReports(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read weekly reports: %w", err)
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].WeekStart > reports[j].WeekStart })
	return reports, nil
}

// Get returns the report offset weeks back from the newest, or nil
func (w *Weekly) Get(ctx context.Context, acct types.Account, offset int) (*types.WeeklyReport, error) {
	reports, err := w.List(ctx, acct)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset >= len(reports) {
		return nil, nil
	}
	return &reports[offset], nil
}

func (w *Weekly) summarize(ctx context.Context, rep types.WeeklyReport) string {
	var sb strings.Builder
	sb.WriteString("Summarize this week of Threads data in at most 200 characters and list three points to improve.\n")
	fmt.Fprintf(&sb, "Posts: %d\n", rep.PostCount)
	fmt.Fprintf(&sb, "Engagement rate: %.2f%%\n", rep.AvgER)
	fmt.Fprintf(&sb, "Views: %d\n", rep.Totals.Views)
	fmt.Fprintf(&sb, "Followers: %d -> %d\n", rep.FollowersStart, rep.FollowersEnd)
	sb.WriteString("Top posts:\n")
	for i, p := range rep.TopPosts {
		fmt.Fprintf(&sb, "%d. ER %.2f%% / %s\n", i+1, p.EngagementRate, p.Text)
	}

	text, err := w.gen.Complete(ctx, sb.String(), providers.Options{})
	if err != nil {
		w.log.WithError(err).Warn("failed to summarize weekly report")
		return summaryFailedMessage
	}
	return strings.TrimSpace(text)
}

func (w *Weekly) email(ctx context.Context, rep types.WeeklyReport, username, toAddr string) error {
	d, err := w.builder.Build(rep, username)
	if err != nil {
		return err
	}
	return w.sender.SendDigest(ctx, d, toAddr)
}
