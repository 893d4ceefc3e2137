package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/metrics"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/threads"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// PostSource lists posts and their insights upstream
type PostSource interface {
	ListPosts(ctx context.Context, acct types.Account) ([]threads.Post, error)
	FetchInsights(ctx context.Context, acct types.Account, postIDs []string) (map[string]types.Metrics, error)
}

// PostStore persists refreshed posts
type PostStore interface {
	PostIndex(ctx context.Context, accountID string) (map[string]store.PostRef, error)
	AppendPosts(ctx context.Context, posts []types.Post) error
	UpdatePostMetrics(ctx context.Context, rowIndex int64, m types.Metrics, rate float64, fetchedAt time.Time) error
}

// MergePlan splits a fetch into posts to append and stored posts to refresh
type MergePlan struct {
	New     []threads.Post
	Refresh []threads.Post
	// Deferred counts stored posts left for a later run by the refresh cap
	Deferred int
}

// IDs lists every post that needs insights, new posts first
func (p MergePlan) IDs() []string {
	ids := make([]string, 0, len(p.New)+len(p.Refresh))
	for _, post := range p.New {
		ids = append(ids, post.ID)
	}
	for _, post := range p.Refresh {
		ids = append(ids, post.ID)
	}
	return ids
}

// PlanMerge partitions fetched posts against the stored index. Every new post
// is kept; stored posts are ordered newest first and capped at maxRefresh.
// A post id repeated within one fetch is planned once.
func PlanMerge(fetched []threads.Post, stored map[string]store.PostRef, maxRefresh int) MergePlan {
	var plan MergePlan
	seen := make(map[string]bool, len(fetched))
	var existing []threads.Post

	for _, p := range fetched {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if _, ok := stored[p.ID]; ok {
			existing = append(existing, p)
		} else {
			plan.New = append(plan.New, p)
		}
	}

	stamp := func(p threads.Post) time.Time {
		if !p.Timestamp.IsZero() {
			return p.Timestamp
		}
		return stored[p.ID].Timestamp
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return stamp(existing[i]).After(stamp(existing[j]))
	})

	if maxRefresh < 0 {
		maxRefresh = 0
	}
	if len(existing) > maxRefresh {
		plan.Deferred = len(existing) - maxRefresh
		existing = existing[:maxRefresh]
	}
	plan.Refresh = existing
	return plan
}

// RefreshResult reports what one refresh run wrote
type RefreshResult struct {
	AccountID    string `json:"accountId"`
	Username     string `json:"accountUsername"`
	Total        int    `json:"total"`
	NewPosts     int    `json:"newPosts"`
	UpdatedPosts int    `json:"updatedPosts"`
	Deferred     int    `json:"deferred"`
}

// Refresher runs the incremental fetch-and-merge for one account at a time
type Refresher struct {
	source     PostSource
	store      PostStore
	locker     lock.Locker
	maxRefresh int
	log        logging.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewRefresher creates a Refresher that refreshes at most maxRefresh stored posts per run
func NewRefresher(source PostSource, st PostStore, locker lock.Locker, maxRefresh int, logger logging.Logger, m *metrics.Metrics) *Refresher {
	return &Refresher{
		source:     source,
		store:      st,
		locker:     locker,
		maxRefresh: maxRefresh,
		log:        logging.Component(logger, "refresh"),
		metrics:    m,
		now:        time.Now,
	}
}

// Run fetches the account's posts, appends unseen ones and overwrites the
// metrics of up to maxRefresh recent stored ones. Posts whose insights were
// not fetched are left untouched.
func (r *Refresher) Run(ctx context.Context, acct types.Account) (RefreshResult, error) {
	result, err := r.run(ctx, acct)
	if err != nil {
		r.metrics.IncRefresh("error")
		return result, err
	}
	r.metrics.IncRefresh("ok")
	return result, nil
}

func (r *Refresher) run(ctx context.Context, acct types.Account) (RefreshResult, error) {
	result := RefreshResult{AccountID: acct.AccountID, Username: acct.Username}
	if !acct.Authenticated() {
		return result, ErrNotAuthenticated
	}

	release, err := r.locker.Lock(ctx, lock.AccountKey(acct.AccountID))
	if err != nil {
		return result, err
	}
	defer release()

	log := r.log.WithField("account", acct.AccountID)

	fetched, err := r.source.ListPosts(ctx, acct)
	if err != nil {
		return result, fmt.Errorf("failed to list posts: %w", err)
	}
	index, err := r.store.PostIndex(ctx, acct.AccountID)
	if err != nil {
		return result, fmt.Errorf("failed to read stored posts: %w", err)
	}

	plan := PlanMerge(fetched, index, r.maxRefresh)
	result.Deferred = plan.Deferred
	log.Infof("fetched %d posts: %d new, %d to refresh, %d deferred",
		len(fetched), len(plan.New), len(plan.Refresh), plan.Deferred)

	insights, err := r.source.FetchInsights(ctx, acct, plan.IDs())
	if err != nil {
		return result, fmt.Errorf("failed to fetch insights: %w", err)
	}

	now := r.now()
	var rows []types.Post
	for _, p := range plan.New {
		m, ok := insights[p.ID]
		if !ok {
			continue
		}
		mediaType := p.MediaType
		if mediaType == "" {
			mediaType = types.MediaTypeText
		}
		rows = append(rows, types.Post{
			PostID:         p.ID,
			AccountID:      acct.AccountID,
			Text:           p.Text,
			MediaType:      mediaType,
			Timestamp:      p.Timestamp,
			Metrics:        m,
			EngagementRate: EngagementRate(m),
			Permalink:      p.Permalink,
			IsQuotePost:    p.IsQuotePost,
			FetchedAt:      now,
		})
	}
	if err := r.store.AppendPosts(ctx, rows); err != nil {
		return result, fmt.Errorf("failed to append posts: %w", err)
	}
	result.NewPosts = len(rows)
	r.metrics.AddPostsWritten("appended", len(rows))

	for _, p := range plan.Refresh {
		m, ok := insights[p.ID]
		if !ok {
			continue
		}
		if err := r.store.UpdatePostMetrics(ctx, index[p.ID].RowIndex, m, EngagementRate(m), now); err != nil {
			return result, fmt.Errorf("failed to update post %s: %w", p.ID, err)
		}
		result.UpdatedPosts++
	}
	r.metrics.AddPostsWritten("updated", result.UpdatedPosts)

	result.Total = len(fetched)
	log.Infof("refresh complete: %d new, %d updated", result.NewPosts, result.UpdatedPosts)
	return result, nil
}
