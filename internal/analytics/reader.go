package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// View is an account's posts for a period with their summary
type View struct {
	PeriodDays int          `json:"periodDays"`
	Summary    Summary      `json:"summary"`
	Posts      []types.Post `json:"posts"`
}

// Reader serves stored analytics
type Reader struct {
	posts PostReader
	now   func() time.Time
}

// NewReader creates a Reader
func NewReader(posts PostReader) *Reader {
	return &Reader{posts: posts, now: time.Now}
}

// Analytics returns the account's posts from the last periodDays days
// (all of them when 0), best engagement rate first, with their summary.
func (r *Reader) Analytics(ctx context.Context, acct types.Account, periodDays int) (View, error) {
	posts, err := r.posts.Posts(ctx, acct.AccountID)
	if err != nil {
		return View{}, fmt.Errorf("failed to read posts: %w", err)
	}
	if periodDays > 0 {
		posts = Since(posts, r.now().AddDate(0, 0, -periodDays))
	}
	SortByRate(posts)
	return View{PeriodDays: periodDays, Summary: Summarize(posts), Posts: posts}, nil
}

// UserInsightSource fetches account-level insights
type UserInsightSource interface {
	UserInsights(ctx context.Context, acct types.Account, since, until time.Time) (types.UserInsight, error)
}

// UserInsightStore records account-level insights
type UserInsightStore interface {
	AppendUserInsight(ctx context.Context, u types.UserInsight) error
}

// UserInsights fetches the account totals of the last days days and records them
func UserInsights(ctx context.Context, src UserInsightSource, st UserInsightStore, acct types.Account, days int, loc *time.Location) (types.UserInsight, error) {
	if !acct.Authenticated() {
		return types.UserInsight{}, ErrNotAuthenticated
	}
	if days <= 0 {
		days = 30
	}
	now := time.Now()
	u, err := src.UserInsights(ctx, acct, now.AddDate(0, 0, -days), now)
	if err != nil {
		return types.UserInsight{}, err
	}
	u.AccountID = acct.AccountID
	u.Date = now.In(loc).Format(store.DateLayout)
	u.FetchedAt = now
	if err := st.AppendUserInsight(ctx, u); err != nil {
		return types.UserInsight{}, fmt.Errorf("failed to store user insights: %w", err)
	}
	return u, nil
}
