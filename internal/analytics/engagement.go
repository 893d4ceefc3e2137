package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// ErrNotAuthenticated is returned when an account has no usable API credentials
var ErrNotAuthenticated = errors.New("account is not authenticated")

// EngagementRate is (likes+replies+reposts+quotes)/views as a percentage
// rounded to two decimals, or 0 when there are no views. Shares are not counted.
func EngagementRate(m types.Metrics) float64 {
	if m.Views <= 0 {
		return 0
	}
	return math.Floor(float64(m.Interactions())/float64(m.Views)*10000+0.5) / 100
}

// Summary aggregates the metrics of a set of posts
type Summary struct {
	PostCount int           `json:"postCount"`
	Totals    types.Metrics `json:"totals"`
	// EngagementRate is computed over the summed counts, so it is
	// view-weighted rather than a mean of per-post rates.
	EngagementRate float64 `json:"engagementRate"`
}

// Summarize sums every metric across posts
func Summarize(posts []types.Post) Summary {
	s := Summary{PostCount: len(posts)}
	for _, p := range posts {
		s.Totals = s.Totals.Add(p.Metrics)
	}
	s.EngagementRate = EngagementRate(s.Totals)
	return s
}

// rawRate is the unrounded weighted rate of posts, 0 without views
func rawRate(posts []types.Post) float64 {
	var m types.Metrics
	for _, p := range posts {
		m = m.Add(p.Metrics)
	}
	if m.Views <= 0 {
		return 0
	}
	return float64(m.Interactions()) / float64(m.Views) * 100
}

// SortByRate orders posts by engagement rate, highest first; ties keep their order
func SortByRate(posts []types.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].EngagementRate > posts[j].EngagementRate
	})
}

// Since returns the posts published at or after cutoff
func Since(posts []types.Post, cutoff time.Time) []types.Post {
	var out []types.Post
	for _, p := range posts {
		if p.Timestamp.IsZero() || p.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// round rounds half up to places decimals
func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Floor(x*p+0.5) / p
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
