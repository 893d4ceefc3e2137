package store

import (
	"context"
	"strings"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// Competitors returns the account's watched competitors in row order
func (s *Store) Competitors(ctx context.Context, accountID string) ([]types.Competitor, error) {
	rows, err := s.ReadRows(ctx, TableCompetitors, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.Competitor, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Competitor{
			ID:               r.Get("id"),
			AccountID:        r.Get(ColAccountID),
			Username:         r.Get("username"),
			DisplayName:      r.Get("display_name"),
			Category:         r.Get("category"),
			Followers:        parseInt(r.Get("followers_count")),
			FollowersUpdated: parseTime(r.Get("followers_updated")),
			Memo:             r.Get("memo"),
			CreatedAt:        parseTime(r.Get("created_at")),
		})
	}
	return out, nil
}

// SaveCompetitor inserts c or overwrites the row with the same id
func (s *Store) SaveCompetitor(ctx context.Context, c types.Competitor) error {
	values := map[string]string{
		"id":                c.ID,
		ColAccountID:        c.AccountID,
		"username":          c.Username,
		"display_name":      c.DisplayName,
		"category":          c.Category,
		"followers_count":   formatInt(c.Followers),
		"followers_updated": formatTime(c.FollowersUpdated),
		"memo":              c.Memo,
		"created_at":        formatTime(c.CreatedAt),
	}
	return s.upsert(ctx, TableCompetitors, ForAccount(c.AccountID),
		func(r Row) bool { return r.Get("id") == c.ID }, values)
}

// DeleteCompetitor removes one competitor and returns how many rows went
func (s *Store) DeleteCompetitor(ctx context.Context, accountID, id string) (int, error) {
	return s.deleteMatching(ctx, TableCompetitors, ForAccount(accountID),
		func(r Row) bool { return r.Get("id") == id })
}

// WatchPosts returns the account's recorded competitor posts in row order
func (s *Store) WatchPosts(ctx context.Context, accountID string) ([]types.WatchPost, error) {
	rows, err := s.ReadRows(ctx, TableWatchPosts, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.WatchPost, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.WatchPost{
			ID:                 r.Get("id"),
			AccountID:          r.Get(ColAccountID),
			CompetitorUsername: r.Get("competitor_username"),
			PostURL:            r.Get("post_url"),
			PostText:           r.Get("post_text"),
			MediaType:          r.Get("media_type"),
			Likes:              parseInt(r.Get("likes")),
			Replies:            parseInt(r.Get("replies")),
			Reposts:            parseInt(r.Get("reposts")),
			PostDate:           r.Get("post_date"),
			Tags:               splitTags(r.Get("tags")),
			Memo:               r.Get("memo"),
			CreatedAt:          parseTime(r.Get("created_at")),
		})
	}
	return out, nil
}

// AppendWatchPost records a competitor post
func (s *Store) AppendWatchPost(ctx context.Context, p types.WatchPost) error {
	return s.AppendRows(ctx, TableWatchPosts, []map[string]string{{
		"id":                  p.ID,
		ColAccountID:          p.AccountID,
		"competitor_username": p.CompetitorUsername,
		"post_url":            p.PostURL,
		"post_text":           p.PostText,
		"media_type":          p.MediaType,
		"likes":               formatInt(p.Likes),
		"replies":             formatInt(p.Replies),
		"reposts":             formatInt(p.Reposts),
		"post_date":           p.PostDate,
		"tags":                strings.Join(p.Tags, ","),
		"memo":                p.Memo,
		"created_at":          formatTime(p.CreatedAt),
	}})
}

// DeleteWatchPost removes one recorded post and returns how many rows went
func (s *Store) DeleteWatchPost(ctx context.Context, accountID, id string) (int, error) {
	return s.deleteMatching(ctx, TableWatchPosts, ForAccount(accountID),
		func(r Row) bool { return r.Get("id") == id })
}

// splitTags parses a comma-joined tag cell
func splitTags(cell string) []string {
	var tags []string
	for _, t := range strings.Split(cell, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
