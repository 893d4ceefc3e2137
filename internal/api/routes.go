package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibeckermayer/threadpulse/internal/app"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// AccountHeader selects the account a request acts on; the active account is used when absent
const AccountHeader = "X-Account-ID"

// Handlers serves the JSON API over an App
type Handlers struct {
	app *app.App
	log logging.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(a *app.App, logger logging.Logger) *Handlers {
	return &Handlers{app: a, log: logging.Component(logger, "api")}
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", AccountHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.app.Gatherer(), promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.AddAccount)
			r.Get("/active", h.GetActiveAccount)
			r.Put("/active", h.SetActiveAccount)
			r.Get("/token-warnings", h.TokenWarnings)
			r.Delete("/{accountID}", h.RemoveAccount)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Post("/refresh/all", h.RefreshAll)
		r.Post("/refine", h.RefinePost)

		// account-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(h.accountContext)

			r.Post("/refresh", h.Refresh)
			r.Get("/analytics", h.GetAnalytics)
			r.Post("/insights", h.FetchUserInsights)

			r.Get("/timeslots", h.GetTimeSlots)
			r.Post("/timeslots", h.GenerateTimeSlots)
			r.Get("/buzz", h.GetBuzz)

			r.Get("/growth", h.GetGrowth)
			r.Post("/growth", h.CalculateGrowth)

			r.Get("/followers", h.GetFollowers)
			r.Post("/followers", h.RecordFollowers)

			r.Post("/checkin", h.CheckIn)

			r.Get("/goals", h.ListGoals)
			r.Post("/goals", h.SetGoal)
			r.Delete("/goals/{goalID}", h.DeleteGoal)

			r.Get("/weekly-reports", h.ListWeeklyReports)
			r.Post("/weekly-reports", h.GenerateWeeklyReport)
			r.Get("/weekly-reports/{offset}", h.GetWeeklyReport)

			r.Post("/generate", h.GeneratePosts)

			r.Get("/drafts", h.ListDrafts)
			r.Post("/drafts", h.SaveDraft)
			r.Post("/drafts/{draftID}/toggle", h.ToggleDraft)
			r.Delete("/drafts/{draftID}", h.DeleteDraft)

			r.Route("/search", func(r chi.Router) {
				r.Post("/", h.SearchKeyword)
				r.Post("/trend", h.AnalyzeKeywordTrend)
				r.Get("/history", h.SearchHistory)
				r.Delete("/history", h.ClearSearchHistory)
				r.Get("/results", h.SavedSearchResults)
				r.Delete("/results", h.ClearSearchResults)
			})

			r.Route("/competitors", func(r chi.Router) {
				r.Get("/", h.ListCompetitors)
				r.Post("/", h.AddCompetitor)
				r.Put("/{competitorID}", h.UpdateCompetitor)
				r.Delete("/{competitorID}", h.DeleteCompetitor)
				r.Get("/posts", h.ListWatchPosts)
				r.Post("/posts", h.SaveWatchPost)
				r.Delete("/posts/{postID}", h.DeleteWatchPost)
				r.Post("/analysis/{kind}", h.AnalyzeCompetitor)
			})
		})
	})

	return r
}

type accountKey struct{}

// accountContext resolves the account of the request and stores it in the context
func (h *Handlers) accountContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(AccountHeader)
		if id == "" {
			id = r.URL.Query().Get("account")
		}
		acct, err := h.app.ResolveAccount(r.Context(), id)
		if err != nil {
			respondSafeError(w, h.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acct)))
	})
}

func accountFrom(r *http.Request) types.Account {
	acct, _ := r.Context().Value(accountKey{}).(types.Account)
	return acct
}

func (h *Handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.WithFields(logging.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"elapsed":    time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
