package store

import (
	"context"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// SearchResults returns the saved results of one keyword in row order
func (s *Store) SearchResults(ctx context.Context, accountID, keyword string) ([]types.SearchPost, error) {
	rows, err := s.ReadRows(ctx, TableSearchResults, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	var out []types.SearchPost
	for _, r := range rows {
		if r.Get("keyword") != keyword {
			continue
		}
		out = append(out, types.SearchPost{
			PostID:      r.Get("post_id"),
			Username:    r.Get("username"),
			Text:        r.Get("text"),
			MediaType:   r.Get("media_type"),
			Permalink:   r.Get("permalink"),
			Timestamp:   parseTime(r.Get("timestamp")),
			HasReplies:  parseBool(r.Get("has_replies")),
			IsQuotePost: parseBool(r.Get("is_quote_post")),
			IsReply:     parseBool(r.Get("is_reply")),
			TopicTag:    r.Get("topic_tag"),
			FetchedAt:   parseTime(r.Get("fetched_at")),
		})
	}
	return out, nil
}

// ReplaceSearchResults swaps the saved results of one keyword for posts
func (s *Store) ReplaceSearchResults(ctx context.Context, accountID, keyword, mode, searchType string, posts []types.SearchPost, fetchedAt time.Time) error {
	rows := make([]map[string]string, len(posts))
	for i, p := range posts {
		rows[i] = map[string]string{
			ColAccountID:    accountID,
			"keyword":       keyword,
			"search_mode":   mode,
			"search_type":   searchType,
			"post_id":       p.PostID,
			"username":      p.Username,
			"text":          p.Text,
			"media_type":    p.MediaType,
			"permalink":     p.Permalink,
			"timestamp":     formatTime(p.Timestamp),
			"has_replies":   formatBool(p.HasReplies),
			"is_quote_post": formatBool(p.IsQuotePost),
			"is_reply":      formatBool(p.IsReply),
			"topic_tag":     p.TopicTag,
			"fetched_at":    formatTime(fetchedAt),
		}
	}
	return s.replaceMatching(ctx, TableSearchResults, ForAccount(accountID),
		func(r Row) bool { return r.Get("keyword") == keyword }, rows)
}

// DeleteSearchResults removes saved results of one keyword, or of every
// keyword when keyword is empty, and returns how many rows went
func (s *Store) DeleteSearchResults(ctx context.Context, accountID, keyword string) (int, error) {
	return s.deleteMatching(ctx, TableSearchResults, ForAccount(accountID),
		func(r Row) bool { return keyword == "" || r.Get("keyword") == keyword })
}

// SearchHistory returns the account's searches in row order, oldest first
func (s *Store) SearchHistory(ctx context.Context, accountID string) ([]types.SearchHistoryEntry, error) {
	rows, err := s.ReadRows(ctx, TableSearchHistory, ForAccount(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]types.SearchHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.SearchHistoryEntry{
			AccountID:   r.Get(ColAccountID),
			Keyword:     r.Get("keyword"),
			SearchMode:  r.Get("search_mode"),
			ResultCount: int(parseInt(r.Get("result_count"))),
			SearchedAt:  parseTime(r.Get("searched_at")),
		})
	}
	return out, nil
}

// RecordSearch appends e, dropping an earlier entry with the same keyword and mode
func (s *Store) RecordSearch(ctx context.Context, e types.SearchHistoryEntry) error {
	return s.replaceMatching(ctx, TableSearchHistory, ForAccount(e.AccountID),
		func(r Row) bool { return r.Get("keyword") == e.Keyword && r.Get("search_mode") == e.SearchMode },
		[]map[string]string{{
			ColAccountID:   e.AccountID,
			"keyword":      e.Keyword,
			"search_mode":  e.SearchMode,
			"result_count": formatInt(int64(e.ResultCount)),
			"searched_at":  formatTime(e.SearchedAt),
		}})
}

// ClearSearchHistory removes the account's history and returns how many entries went
func (s *Store) ClearSearchHistory(ctx context.Context, accountID string) (int, error) {
	return s.deleteMatching(ctx, TableSearchHistory, ForAccount(accountID), func(Row) bool { return true })
}
