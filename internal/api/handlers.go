package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ibeckermayer/threadpulse/internal/app"
	"github.com/ibeckermayer/threadpulse/internal/assistant"
	"github.com/ibeckermayer/threadpulse/internal/retention"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", types.ErrInvalidInput, err)
	}
	return nil
}

// intParam reads a non-negative integer query parameter, def when absent
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", types.ErrInvalidInput, name)
	}
	return n, nil
}

// HealthCheck reports liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Accounts

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.app.Accounts(r.Context())
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handlers) AddAccount(w http.ResponseWriter, r *http.Request) {
	var req app.AddAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	res, err := h.app.AddAccount(r.Context(), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

func (h *Handlers) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.app.RemoveAccount(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetActiveAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.app.ActiveAccount(r.Context())
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

func (h *Handlers) SetActiveAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	acct, err := h.app.SetActiveAccount(r.Context(), req.AccountID)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

func (h *Handlers) TokenWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.app.TokenWarnings(r.Context())
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, warnings)
}

// Settings

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Settings(r.Context())
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req app.SettingsUpdate
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	s, err := h.app.UpdateSettings(r.Context(), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// Analytics

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Refresh(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) RefreshAll(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.app.RefreshAll(r.Context())
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, outcomes)
}

func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	period, err := intParam(r, "period", 30)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	view, err := h.app.Analytics(r.Context(), accountFrom(r), period)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) FetchUserInsights(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	insight, err := h.app.FetchUserInsights(r.Context(), accountFrom(r), days)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, insight)
}

func (h *Handlers) GetTimeSlots(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.TimeSlots(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) GenerateTimeSlots(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.GenerateTimeSlots(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetBuzz(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 0)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	report, err := h.app.Buzz(r.Context(), accountFrom(r), days)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handlers) GetGrowth(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.LatestGrowth(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) CalculateGrowth(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.CalculateGrowth(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetFollowers(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	history, err := h.app.FollowerHistory(r.Context(), accountFrom(r), days)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *Handlers) RecordFollowers(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.RecordFollowers(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Retention

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.CheckIn(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.app.Goals(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, goals)
}

func (h *Handlers) SetGoal(w http.ResponseWriter, r *http.Request) {
	var req retention.GoalRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	goal, err := h.app.SetGoal(r.Context(), accountFrom(r), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

func (h *Handlers) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteGoal(r.Context(), accountFrom(r), chi.URLParam(r, "goalID")); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListWeeklyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.app.WeeklyReports(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

func (h *Handlers) GenerateWeeklyReport(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.GenerateWeeklyReport(r.Context(), accountFrom(r))
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetWeeklyReport(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.Atoi(chi.URLParam(r, "offset"))
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	rep, err := h.app.WeeklyReport(r.Context(), accountFrom(r), offset)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	if rep == nil {
		respondError(w, http.StatusNotFound, "no weekly report at that offset")
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// Assistant

func (h *Handlers) GeneratePosts(w http.ResponseWriter, r *http.Request) {
	var req assistant.GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	gen, err := h.app.GeneratePosts(r.Context(), accountFrom(r), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, gen)
}

func (h *Handlers) RefinePost(w http.ResponseWriter, r *http.Request) {
	var req assistant.RefineRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	drafts, err := h.app.RefinePost(r.Context(), req)
	if err != nil {
		respondSafeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, drafts)
}
