// Package search runs keyword and topic searches over public Threads posts
// and keeps their results and history per account.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/threads"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

const (
	defaultLimit     = 25
	maxLimit         = 100
	maxStoredText    = 500
	maxHistory       = 20
	maxFallbackPosts = 20
	maxTrendPosts    = 30
)

// Result sources
const (
	SourceAPI      = "threads_api"
	SourceFallback = "fallback"
)

// Searcher runs keyword searches against the Threads API
type Searcher interface {
	KeywordSearch(ctx context.Context, acct types.Account, q threads.SearchQuery) (threads.SearchPage, error)
}

// Store is the persistence search needs
type Store interface {
	analytics.PostReader
	ReplaceSearchResults(ctx context.Context, accountID, keyword, mode, searchType string, posts []types.SearchPost, fetchedAt time.Time) error
	SearchResults(ctx context.Context, accountID, keyword string) ([]types.SearchPost, error)
	DeleteSearchResults(ctx context.Context, accountID, keyword string) (int, error)
	RecordSearch(ctx context.Context, e types.SearchHistoryEntry) error
	SearchHistory(ctx context.Context, accountID string) ([]types.SearchHistoryEntry, error)
	ClearSearchHistory(ctx context.Context, accountID string) (int, error)
}

// Completer runs free-form prompts; nil disables the fallback analysis
type Completer interface {
	Complete(ctx context.Context, prompt string, opts providers.Options) (string, error)
}

// Request is one keyword search. Empty fields take the API defaults.
type Request struct {
	Keyword        string `json:"keyword"`
	SearchType     string `json:"searchType"`
	SearchMode     string `json:"searchMode"`
	MediaType      string `json:"mediaType"`
	Limit          int    `json:"limit"`
	Since          int64  `json:"since"`
	Until          int64  `json:"until"`
	AuthorUsername string `json:"authorUsername"`
}

// Result is a search answered by the API, or by the account's own posts
// when the API refused the search
type Result struct {
	Source     string                 `json:"source"`
	Keyword    string                 `json:"keyword"`
	SearchType string                 `json:"searchType"`
	SearchMode string                 `json:"searchMode"`
	TotalCount int                    `json:"totalCount"`
	HasMore    bool                   `json:"hasMore"`
	Posts      []types.SearchPost     `json:"posts,omitempty"`
	Style      *analytics.StyleReport `json:"styleAnalysis,omitempty"`
	APIError   string                 `json:"apiError,omitempty"`
	MyPosts    []types.Post           `json:"myPosts,omitempty"`
	Analysis   string                 `json:"analysis,omitempty"`
}

// TrendResult is a generated reading of a set of search results
type TrendResult struct {
	Keyword   string `json:"keyword"`
	PostCount int    `json:"postCount"`
	Analysis  string `json:"analysis"`
}

// Service runs searches for accounts
type Service struct {
	searcher Searcher
	store    Store
	gen      Completer
	loc      *time.Location
	log      logging.Logger
	now      func() time.Time
}

// New creates a search service bucketing posting hours in loc
func New(searcher Searcher, st Store, gen Completer, loc *time.Location, logger logging.Logger) *Service {
	return &Service{
		searcher: searcher,
		store:    st,
		gen:      gen,
		loc:      loc,
		log:      logging.Component(logger, "search"),
		now:      time.Now,
	}
}

// Search queries the API and saves the results over earlier ones for the
// same keyword. When the API fails and text generation is available, the
// account's own matching posts and a generated analysis are returned instead.
func (s *Service) Search(ctx context.Context, acct types.Account, req Request) (Result, error) {
	if !acct.Authenticated() {
		return Result{}, analytics.ErrNotAuthenticated
	}
	q, err := normalize(req)
	if err != nil {
		return Result{}, err
	}

	page, err := s.searcher.KeywordSearch(ctx, acct, q)
	if err != nil {
		if ctx.Err() != nil || s.gen == nil {
			return Result{}, err
		}
		s.log.WithField("account", acct.AccountID).WithError(err).Warn("keyword search failed, answering from own posts")
		return s.fallback(ctx, acct, q, err)
	}

	posts := page.Posts
	for i := range posts {
		posts[i].Text = truncateRunes(posts[i].Text, maxStoredText)
	}
	now := s.now()
	if err := s.store.ReplaceSearchResults(ctx, acct.AccountID, q.Query, q.SearchMode, q.SearchType, posts, now); err != nil {
		return Result{}, fmt.Errorf("failed to store search results: %w", err)
	}
	if err := s.record(ctx, acct, q, len(posts), now); err != nil {
		return Result{}, err
	}

	style := analytics.AnalyzeStyles(posts, s.loc)
	return Result{
		Source:     SourceAPI,
		Keyword:    q.Query,
		SearchType: q.SearchType,
		SearchMode: q.SearchMode,
		TotalCount: len(posts),
		HasMore:    page.HasMore,
		Posts:      posts,
		Style:      &style,
	}, nil
}

func (s *Service) fallback(ctx context.Context, acct types.Account, q threads.SearchQuery, apiErr error) (Result, error) {
	own, err := s.store.Posts(ctx, acct.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read posts: %w", err)
	}
	matched := analytics.MatchKeyword(own, q.Query)

	analysis, err := s.gen.Complete(ctx, fallbackPrompt(q.Query, acct.Username, matched), providers.Options{Temperature: 0.7, MaxTokens: 2048})
	if err != nil {
		s.log.WithError(err).Warn("fallback analysis failed")
		analysis = ""
	}
	if err := s.record(ctx, acct, q, len(matched), s.now()); err != nil {
		return Result{}, err
	}

	return Result{
		Source:     SourceFallback,
		Keyword:    q.Query,
		SearchType: q.SearchType,
		SearchMode: q.SearchMode,
		TotalCount: len(matched),
		APIError:   apiErrorMessage(apiErr),
		MyPosts:    matched,
		Analysis:   strings.TrimSpace(analysis),
	}, nil
}

func (s *Service) record(ctx context.Context, acct types.Account, q threads.SearchQuery, count int, at time.Time) error {
	err := s.store.RecordSearch(ctx, types.SearchHistoryEntry{
		AccountID:   acct.AccountID,
		Keyword:     q.Query,
		SearchMode:  q.SearchMode,
		ResultCount: count,
		SearchedAt:  at,
	})
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// Trend asks for a reading of posts, or of the saved results of keyword
// when posts is empty
func (s *Service) Trend(ctx context.Context, acct types.Account, keyword string, posts []types.SearchPost) (TrendResult, error) {
	if s.gen == nil {
		return TrendResult{}, fmt.Errorf("%w: trend analysis needs text generation", types.ErrInvalidInput)
	}
	keyword = strings.TrimSpace(keyword)
	if len(posts) == 0 && keyword != "" {
		saved, err := s.store.SearchResults(ctx, acct.AccountID, keyword)
		if err != nil {
			return TrendResult{}, fmt.Errorf("failed to read saved results: %w", err)
		}
		posts = saved
	}
	if len(posts) == 0 {
		return TrendResult{}, fmt.Errorf("%w: no posts to analyze", types.ErrInvalidInput)
	}

	analysis, err := s.gen.Complete(ctx, trendPrompt(keyword, posts), providers.Options{Temperature: 0.7, MaxTokens: 2048})
	if err != nil {
		return TrendResult{}, fmt.Errorf("failed to analyze trend: %w", err)
	}
	return TrendResult{Keyword: keyword, PostCount: len(posts), Analysis: strings.TrimSpace(analysis)}, nil
}

// SavedResults returns the stored results of keyword
func (s *Service) SavedResults(ctx context.Context, acct types.Account, keyword string) ([]types.SearchPost, error) {
	posts, err := s.store.SearchResults(ctx, acct.AccountID, strings.TrimSpace(keyword))
	if err != nil {
		return nil, fmt.Errorf("failed to read saved results: %w", err)
	}
	if posts == nil {
		posts = []types.SearchPost{}
	}
	return posts, nil
}

// History returns the latest searches, newest first
func (s *Service) History(ctx context.Context, acct types.Account) ([]types.SearchHistoryEntry, error) {
	all, err := s.store.SearchHistory(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read search history: %w", err)
	}
	out := make([]types.SearchHistoryEntry, 0, min(len(all), maxHistory))
	for i := len(all) - 1; i >= 0 && len(out) < maxHistory; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// ClearHistory forgets every search of the account
func (s *Service) ClearHistory(ctx context.Context, acct types.Account) (int, error) {
	return s.store.ClearSearchHistory(ctx, acct.AccountID)
}

// ClearResults drops saved results of keyword, or of every keyword when empty
func (s *Service) ClearResults(ctx context.Context, acct types.Account, keyword string) (int, error) {
	return s.store.DeleteSearchResults(ctx, acct.AccountID, strings.TrimSpace(keyword))
}

// normalize validates req and fills in the API defaults
func normalize(req Request) (threads.SearchQuery, error) {
	q := threads.SearchQuery{
		Query:          strings.TrimSpace(req.Keyword),
		SearchType:     strings.ToUpper(strings.TrimSpace(req.SearchType)),
		SearchMode:     strings.ToUpper(strings.TrimSpace(req.SearchMode)),
		MediaType:      strings.ToUpper(strings.TrimSpace(req.MediaType)),
		Limit:          req.Limit,
		Since:          req.Since,
		Until:          req.Until,
		AuthorUsername: strings.TrimPrefix(strings.TrimSpace(req.AuthorUsername), "@"),
	}
	if q.Query == "" {
		return q, fmt.Errorf("%w: keyword is required", types.ErrInvalidInput)
	}
	switch q.SearchType {
	case "":
		q.SearchType = threads.SearchTop
	case threads.SearchTop, threads.SearchRecent:
	default:
		return q, fmt.Errorf("%w: unknown search type %q", types.ErrInvalidInput, req.SearchType)
	}
	switch q.SearchMode {
	case "":
		q.SearchMode = threads.SearchKeyword
	case threads.SearchKeyword, threads.SearchTag:
	default:
		return q, fmt.Errorf("%w: unknown search mode %q", types.ErrInvalidInput, req.SearchMode)
	}
	if q.MediaType == "ALL" {
		q.MediaType = ""
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultLimit
	case q.Limit > maxLimit:
		q.Limit = maxLimit
	}
	return q, nil
}

func apiErrorMessage(err error) string {
	var apiErr *threads.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "the search request failed"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
