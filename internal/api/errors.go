package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant"
	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/threads"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// classify maps an error to its status and a message safe to show clients.
// Only errors caused by the request itself keep their text; everything else
// gets a generic message.
func classify(err error) (int, string) {
	var apiErr *threads.APIError
	switch {
	case errors.Is(err, analytics.ErrNotAuthenticated):
		return http.StatusUnauthorized, "account is not authenticated; reconnect it with a new access token"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, assistant.ErrNotConfigured):
		return http.StatusBadRequest, "text generation is not configured; set an API key in settings"
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusConflict, "another operation is running for this account"
	case errors.Is(err, threads.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited by the Threads API; try again later"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "the Threads API request failed"
	default:
		return http.StatusInternalServerError, "an internal error occurred"
	}
}

// respondSafeError logs the full error and sends the sanitized one
func respondSafeError(w http.ResponseWriter, log logging.Logger, err error) {
	status, msg := classify(err)
	entry := log.WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	respondError(w, status, msg)
}
