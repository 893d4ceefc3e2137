package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

const (
	postMetrics    = "views,likes,replies,reposts,quotes,shares"
	accountMetrics = "views,likes,replies,reposts,quotes,followers_count"
)

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value json.Number `json:"value"`
		} `json:"values"`
		TotalValue *struct {
			Value json.Number `json:"value"`
		} `json:"total_value"`
	} `json:"data"`
}

// first takes the first reported value, falling back to the total
func (r insightsResponse) first() map[string]int64 {
	out := make(map[string]int64, len(r.Data))
	for _, d := range r.Data {
		switch {
		case len(d.Values) > 0:
			out[d.Name] = number(d.Values[0].Value)
		case d.TotalValue != nil:
			out[d.Name] = number(d.TotalValue.Value)
		}
	}
	return out
}

// sum prefers the total and otherwise adds up the time series
func (r insightsResponse) sum() map[string]int64 {
	out := make(map[string]int64, len(r.Data))
	for _, d := range r.Data {
		if d.TotalValue != nil {
			out[d.Name] = number(d.TotalValue.Value)
			continue
		}
		var total int64
		for _, v := range d.Values {
			total += number(v.Value)
		}
		out[d.Name] = total
	}
	return out
}

func number(n json.Number) int64 {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return int64(f)
}

func metricsFrom(values map[string]int64) types.Metrics {
	return types.Metrics{
		Views:   values["views"],
		Likes:   values["likes"],
		Replies: values["replies"],
		Reposts: values["reposts"],
		Quotes:  values["quotes"],
		Shares:  values["shares"],
	}
}

// FetchInsights fetches per-post metrics in consecutive batches of
// InsightBatchSize, running each batch concurrently and pausing between
// batches. A post whose fetch or decode fails gets zero metrics; only
// context cancellation returns an error.
func (c *Client) FetchInsights(ctx context.Context, acct types.Account, postIDs []string) (map[string]types.Metrics, error) {
	results := make(map[string]types.Metrics, len(postIDs))
	size := c.cfg.InsightBatchSize
	if size < 1 {
		size = 1
	}

	for start := 0; start < len(postIDs); start += size {
		if start > 0 {
			if err := c.sleep(ctx, c.cfg.InsightBatchDelay()); err != nil {
				return results, err
			}
		}

		batch := postIDs[start:min(start+size, len(postIDs))]
		fetched := make([]types.Metrics, len(batch))

		var g errgroup.Group
		g.SetLimit(size)
		for i, id := range batch {
			g.Go(func() error {
				m, err := c.postInsights(ctx, acct.AccessToken, id)
				if err != nil {
					c.metrics.IncInsightFailure()
					c.log.WithField("post_id", id).WithError(err).Warn("insight fetch failed, using zero metrics")
				}
				fetched[i] = m
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}
		for i, id := range batch {
			results[id] = fetched[i]
		}
	}

	return results, nil
}

func (c *Client) postInsights(ctx context.Context, accessToken, postID string) (types.Metrics, error) {
	body, err := c.get(ctx, "insights", c.endpoint(postID+"/insights", url.Values{
		"metric":       {postMetrics},
		"access_token": {accessToken},
	}))
	if err != nil {
		return types.Metrics{}, err
	}
	var r insightsResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return types.Metrics{}, fmt.Errorf("failed to parse insights: %w", err)
	}
	return metricsFrom(r.first()), nil
}

// UserInsights fetches account-level totals between since and until.
// Clicks come from a separate request whose failure is tolerated.
func (c *Client) UserInsights(ctx context.Context, acct types.Account, since, until time.Time) (types.UserInsight, error) {
	if !acct.Authenticated() {
		return types.UserInsight{}, fmt.Errorf("account %s has no credentials", acct.AccountID)
	}

	params := func(metric string) url.Values {
		return url.Values{
			"metric":       {metric},
			"since":        {strconv.FormatInt(since.Unix(), 10)},
			"until":        {strconv.FormatInt(until.Unix(), 10)},
			"access_token": {acct.AccessToken},
		}
	}

	body, err := c.get(ctx, "user_insights", c.endpoint(acct.UserID+"/threads_insights", params(accountMetrics)))
	if err != nil {
		return types.UserInsight{}, fmt.Errorf("failed to fetch user insights: %w", err)
	}
	var r insightsResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return types.UserInsight{}, fmt.Errorf("failed to parse user insights: %w", err)
	}
	values := r.sum()

	u := types.UserInsight{
		AccountID: acct.AccountID,
		Metrics:   metricsFrom(values),
		Followers: values["followers_count"],
	}

	if body, err := c.get(ctx, "user_insights", c.endpoint(acct.UserID+"/threads_insights", params("clicks"))); err != nil {
		c.log.WithError(err).Warn("clicks unavailable")
	} else {
		var cr insightsResponse
		if err := json.Unmarshal(body, &cr); err == nil {
			u.Clicks = cr.sum()["clicks"]
		}
	}

	return u, nil
}

// FollowerCount returns the account's current follower total
func (c *Client) FollowerCount(ctx context.Context, acct types.Account) (int64, error) {
	if !acct.Authenticated() {
		return 0, fmt.Errorf("account %s has no credentials", acct.AccountID)
	}
	body, err := c.get(ctx, "followers", c.endpoint(acct.UserID+"/threads_insights", url.Values{
		"metric":       {"followers_count"},
		"access_token": {acct.AccessToken},
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch follower count: %w", err)
	}
	var r insightsResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("failed to parse follower count: %w", err)
	}
	return r.sum()["followers_count"], nil
}
