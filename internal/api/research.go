package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ibeckermayer/threadpulse/internal/competitors"
	"github.com/ibeckermayer/threadpulse/internal/drafts"
	"github.com/ibeckermayer/threadpulse/internal/search"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// countResponse reports how many rows an operation touched
type countResponse struct {
	Count int `json:"count"`
}

// Drafts

func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Drafts(r.Context(), accountFrom(r), r.URL.Query().Get("status"))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handlers) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req drafts.SaveRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	saved, err := h.app.SaveDraft(r.Context(), accountFrom(r), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *Handlers) ToggleDraft(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.ToggleDraft(r.Context(), accountFrom(r), chi.URLParam(r, "draftID"))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handlers) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.DeleteDraft(r.Context(), accountFrom(r), chi.URLParam(r, "draftID"))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, countResponse{Count: n})
}

// Keyword search

func (h *Handlers) SearchKeyword(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	res, err := h.app.SearchKeyword(r.Context(), accountFrom(r), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// trendRequest names a keyword and, optionally, the posts to read; the saved
// results of the keyword are used when posts is empty
type trendRequest struct {
	Keyword string             `json:"keyword"`
	Posts   []types.SearchPost `json:"posts"`
}

func (h *Handlers) AnalyzeKeywordTrend(w http.ResponseWriter, r *http.Request) {
	var req trendRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	res, err := h.app.AnalyzeKeywordTrend(r.Context(), accountFrom(r), req.Keyword, req.Posts)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) SearchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.app.SearchHistory(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *Handlers) ClearSearchHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.ClearSearchHistory(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handlers) SavedSearchResults(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	posts, err := h.app.SavedSearchResults(r.Context(), accountFrom(r), keyword)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

func (h *Handlers) ClearSearchResults(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.ClearSearchResults(r.Context(), accountFrom(r), r.URL.Query().Get("keyword"))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, countResponse{Count: n})
}

// Competitors

func (h *Handlers) ListCompetitors(w http.ResponseWriter, r *http.Request) {
	listed, err := h.app.Competitors(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, listed)
}

func (h *Handlers) AddCompetitor(w http.ResponseWriter, r *http.Request) {
	var req competitors.AddRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	c, err := h.app.AddCompetitor(r.Context(), accountFrom(r), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) UpdateCompetitor(w http.ResponseWriter, r *http.Request) {
	var req competitors.UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	c, err := h.app.UpdateCompetitor(r.Context(), accountFrom(r), chi.URLParam(r, "competitorID"), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) DeleteCompetitor(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteCompetitor(r.Context(), accountFrom(r), chi.URLParam(r, "competitorID")); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListWatchPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts, err := h.app.WatchPosts(r.Context(), accountFrom(r), q.Get("username"), q.Get("tag"))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

func (h *Handlers) SaveWatchPost(w http.ResponseWriter, r *http.Request) {
	var req competitors.WatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	p, err := h.app.SaveWatchPost(r.Context(), accountFrom(r), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) DeleteWatchPost(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteWatchPost(r.Context(), accountFrom(r), chi.URLParam(r, "postID")); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// analysisRequest optionally narrows an analysis to one competitor
type analysisRequest struct {
	Username string `json:"username"`
}

func (h *Handlers) AnalyzeCompetitor(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			respondSafeError(w, h.log, err)
			return
		}
	}

	var (
		res competitors.Analysis
		err error
	)
	switch kind := chi.URLParam(r, "kind"); kind {
	case "style":
		res, err = h.app.AnalyzeCompetitorStyle(r.Context(), accountFrom(r), req.Username)
	case "vs-self":
		res, err = h.app.AnalyzeVsCompetitors(r.Context(), accountFrom(r), req.Username)
	case "buzz":
		res, err = h.app.AnalyzeCompetitorBuzz(r.Context(), accountFrom(r))
	default:
		respondError(w, http.StatusNotFound, "unknown analysis "+kind)
		return
	}
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
