package store

import (
	"context"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// PostRef locates a stored post
type PostRef struct {
	RowIndex  int64
	Timestamp time.Time
}

// Posts returns every stored post of an account in row order
func (s *Store) Posts(ctx context.Context, accountID string) ([]types.Post, error) {
	rows, err := s.ReadRows(ctx, TablePosts, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	posts := make([]types.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, postFromRow(r))
	}
	return posts, nil
}

// PostIndex maps each stored post id of an account to its row.
// When an id occurs twice the first row wins.
func (s *Store) PostIndex(ctx context.Context, accountID string) (map[string]PostRef, error) {
	rows, err := s.ReadRows(ctx, TablePosts, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	index := make(map[string]PostRef, len(rows))
	for _, r := range rows {
		id := r.Get("post_id")
		if id == "" {
			continue
		}
		if _, seen := index[id]; seen {
			continue
		}
		index[id] = PostRef{RowIndex: r.Index, Timestamp: parseTime(r.Get("timestamp"))}
	}
	return index, nil
}

// AppendPosts writes new posts in one batch
func (s *Store) AppendPosts(ctx context.Context, posts []types.Post) error {
	rows := make([]map[string]string, len(posts))
	for i, p := range posts {
		rows[i] = postToRow(p)
	}
	return s.AppendRows(ctx, TablePosts, rows)
}

// UpdatePostMetrics overwrites the metric columns and fetch time of one post row
func (s *Store) UpdatePostMetrics(ctx context.Context, rowIndex int64, m types.Metrics, rate float64, fetchedAt time.Time) error {
	values := metricCells(m)
	values["engagement_rate"] = formatFloat(rate)
	values["fetched_at"] = formatTime(fetchedAt)
	return s.UpdateCells(ctx, TablePosts, rowIndex, values)
}

func metricCells(m types.Metrics) map[string]string {
	return map[string]string{
		"views":   formatInt(m.Views),
		"likes":   formatInt(m.Likes),
		"replies": formatInt(m.Replies),
		"reposts": formatInt(m.Reposts),
		"quotes":  formatInt(m.Quotes),
		"shares":  formatInt(m.Shares),
	}
}

func postToRow(p types.Post) map[string]string {
	mediaType := p.MediaType
	if mediaType == "" {
		mediaType = types.MediaTypeText
	}
	row := metricCells(p.Metrics)
	row["post_id"] = p.PostID
	row[ColAccountID] = p.AccountID
	row["text"] = p.Text
	row["media_type"] = mediaType
	row["timestamp"] = formatTime(p.Timestamp)
	row["engagement_rate"] = formatFloat(p.EngagementRate)
	row["permalink"] = p.Permalink
	row["is_quote_post"] = formatBool(p.IsQuotePost)
	row["topic_tag"] = p.TopicTag
	row["fetched_at"] = formatTime(p.FetchedAt)
	return row
}

func postFromRow(r Row) types.Post {
	return types.Post{
		PostID:    r.Get("post_id"),
		AccountID: r.Get(ColAccountID),
		Text:      r.Get("text"),
		MediaType: r.Get("media_type"),
		Timestamp: parseTime(r.Get("timestamp")),
		Metrics: types.Metrics{
			Views:   parseInt(r.Get("views")),
			Likes:   parseInt(r.Get("likes")),
			Replies: parseInt(r.Get("replies")),
			Reposts: parseInt(r.Get("reposts")),
			Quotes:  parseInt(r.Get("quotes")),
			Shares:  parseInt(r.Get("shares")),
		},
		EngagementRate: parseFloat(r.Get("engagement_rate")),
		Permalink:      r.Get("permalink"),
		IsQuotePost:    parseBool(r.Get("is_quote_post")),
		TopicTag:       r.Get("topic_tag"),
		FetchedAt:      parseTime(r.Get("fetched_at")),
	}
}
