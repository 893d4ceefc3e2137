package app

import (
	"context"

	"github.com/ibeckermayer/threadpulse/internal/competitors"
	"github.com/ibeckermayer/threadpulse/internal/drafts"
	"github.com/ibeckermayer/threadpulse/internal/search"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// SaveDraft stores a draft or the parts of a thread
func (a *App) SaveDraft(ctx context.Context, acct types.Account, req drafts.SaveRequest) ([]types.Draft, error) {
	return a.drafts.Save(ctx, acct, req)
}

// Drafts lists the account's drafts, optionally by status
func (a *App) Drafts(ctx context.Context, acct types.Account, status string) ([]drafts.Entry, error) {
	return a.drafts.List(ctx, acct, status)
}

// ToggleDraft flips a draft, or its whole thread, between unused and used
func (a *App) ToggleDraft(ctx context.Context, acct types.Account, id string) (string, error) {
	return a.drafts.Toggle(ctx, acct, id)
}

// DeleteDraft removes a draft, or its whole thread
func (a *App) DeleteDraft(ctx context.Context, acct types.Account, id string) (int, error) {
	return a.drafts.Delete(ctx, acct, id)
}

// SearchKeyword runs a keyword search, falling back to the account's own
// posts when the API refuses and text generation is configured
func (a *App) SearchKeyword(ctx context.Context, acct types.Account, req search.Request) (search.Result, error) {
	return a.search(ctx).Search(ctx, acct, req)
}

// AnalyzeKeywordTrend reads a set of search results with the assistant
func (a *App) AnalyzeKeywordTrend(ctx context.Context, acct types.Account, keyword string, posts []types.SearchPost) (search.TrendResult, error) {
	asst, err := a.Assistant(ctx)
	if err != nil {
		return search.TrendResult{}, err
	}
	return search.New(a.client, a.store, asst, a.loc, a.log).Trend(ctx, acct, keyword, posts)
}

// SavedSearchResults returns the stored results of keyword
func (a *App) SavedSearchResults(ctx context.Context, acct types.Account, keyword string) ([]types.SearchPost, error) {
	return a.search(ctx).SavedResults(ctx, acct, keyword)
}

// SearchHistory returns the latest searches of the account
func (a *App) SearchHistory(ctx context.Context, acct types.Account) ([]types.SearchHistoryEntry, error) {
	return a.search(ctx).History(ctx, acct)
}

// ClearSearchHistory forgets the account's searches
func (a *App) ClearSearchHistory(ctx context.Context, acct types.Account) (int, error) {
	return a.search(ctx).ClearHistory(ctx, acct)
}

// ClearSearchResults drops saved results of keyword, or all when empty
func (a *App) ClearSearchResults(ctx context.Context, acct types.Account, keyword string) (int, error) {
	return a.search(ctx).ClearResults(ctx, acct, keyword)
}

// AddCompetitor registers a competitor
func (a *App) AddCompetitor(ctx context.Context, acct types.Account, req competitors.AddRequest) (types.Competitor, error) {
	return a.competitors(nil).Add(ctx, acct, req)
}

// Competitors lists the account's competitors
func (a *App) Competitors(ctx context.Context, acct types.Account) ([]competitors.Listed, error) {
	return a.competitors(nil).List(ctx, acct)
}

// UpdateCompetitor changes a competitor
func (a *App) UpdateCompetitor(ctx context.Context, acct types.Account, id string, req competitors.UpdateRequest) (types.Competitor, error) {
	return a.competitors(nil).Update(ctx, acct, id, req)
}

// DeleteCompetitor removes a competitor
func (a *App) DeleteCompetitor(ctx context.Context, acct types.Account, id string) error {
	return a.competitors(nil).Delete(ctx, acct, id)
}

// SaveWatchPost records a competitor post
func (a *App) SaveWatchPost(ctx context.Context, acct types.Account, req competitors.WatchRequest) (types.WatchPost, error) {
	return a.competitors(nil).SavePost(ctx, acct, req)
}

// WatchPosts lists recorded competitor posts
func (a *App) WatchPosts(ctx context.Context, acct types.Account, username, tag string) ([]types.WatchPost, error) {
	return a.competitors(nil).Posts(ctx, acct, username, tag)
}

// DeleteWatchPost removes a recorded post
func (a *App) DeleteWatchPost(ctx context.Context, acct types.Account, id string) error {
	return a.competitors(nil).DeletePost(ctx, acct, id)
}

// AnalyzeCompetitorStyle describes how one competitor writes
func (a *App) AnalyzeCompetitorStyle(ctx context.Context, acct types.Account, username string) (competitors.Analysis, error) {
	w, err := a.analyzingCompetitors(ctx)
	if err != nil {
		return competitors.Analysis{}, err
	}
	return w.AnalyzeStyle(ctx, acct, username)
}

// AnalyzeVsCompetitors compares the account with its competitors
func (a *App) AnalyzeVsCompetitors(ctx context.Context, acct types.Account, username string) (competitors.Analysis, error) {
	w, err := a.analyzingCompetitors(ctx)
	if err != nil {
		return competitors.Analysis{}, err
	}
	return w.AnalyzeVsSelf(ctx, acct, username)
}

// AnalyzeCompetitorBuzz finds the patterns behind viral competitor posts
func (a *App) AnalyzeCompetitorBuzz(ctx context.Context, acct types.Account) (competitors.Analysis, error) {
	w, err := a.analyzingCompetitors(ctx)
	if err != nil {
		return competitors.Analysis{}, err
	}
	return w.AnalyzeBuzz(ctx, acct)
}

func (a *App) search(ctx context.Context) *search.Service {
	return search.New(a.client, a.store, a.completer(ctx), a.loc, a.log)
}

func (a *App) competitors(gen competitors.Completer) *competitors.Watch {
	return competitors.New(a.store, gen, a.loc)
}

// analyzingCompetitors returns a watch backed by the assistant, or
// assistant.ErrNotConfigured
func (a *App) analyzingCompetitors(ctx context.Context) (*competitors.Watch, error) {
	asst, err := a.Assistant(ctx)
	if err != nil {
		return nil, err
	}
	return a.competitors(asst), nil
}
