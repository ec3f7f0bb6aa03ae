/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. httprate:   Per-IP limit on /api/assistant (each call costs a model request)

ROUTE GROUPS:
  /api/shifts/*         Shift lifecycle
  /api/leave/*          Leave requests
  /api/doctors/*        Doctor directory and credential passports
  /api/wallet/*         Wallet, withdrawals, payment methods
  /api/assistant/*      Gemini-backed helpers
  /api/state            Whole-state export/import

SECURITY NOTE:
  No authentication middleware. The caller is named by X-Actor-* headers.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

type RouterOptions struct {
	AllowedOrigins []string
	// AssistantRequestsPerMinute caps /api/assistant per client IP. Zero disables the limit.
	AssistantRequestsPerMinute int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Role", "X-Actor-Name"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Post("/bulk", h.AddShifts)
			r.Get("/export", h.ExportShifts)
			r.Get("/marketplace", h.Marketplace)
			r.Get("/urgent", h.Urgent)
			r.Get("/{id}", h.GetShift)
			r.Delete("/{id}", h.DeleteShift)
			r.Post("/{id}/apply", h.Apply)
			r.Post("/{id}/assign", h.Assign)
			r.Post("/{id}/timesheet", h.SubmitTimesheet)
			r.Post("/{id}/swap", h.RequestSwap)
			r.Post("/{id}/approve", h.ApproveShift)
			r.Post("/{id}/reject", h.RejectShift)
		})

		r.Route("/leave", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.RequestLeave)
			r.Post("/{id}/approve", h.ApproveLeave)
			r.Post("/{id}/reject", h.RejectLeave)
		})

		r.Get("/requests/pending", h.PendingRequests)
		r.Get("/calendar", h.Calendar)
		r.Get("/stats", h.Stats)
		r.Get("/search", h.Search)

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", h.ListDoctors)
			r.Post("/", h.SaveDoctor)
			r.Get("/{id}/credentials", h.ListCredentials)
			r.Post("/{id}/credentials", h.AddCredential)
		})

		r.Route("/wallet/{owner}", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Post("/withdraw", h.Withdraw)
			r.Get("/methods", h.ListPaymentMethods)
			r.Post("/methods", h.LinkPaymentMethod)
			r.Post("/methods/{id}/default", h.SetDefaultPaymentMethod)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})

		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.SavePreferences)

		r.Get("/state", h.ExportState)
		r.Post("/state", h.ImportState)

		r.Route("/assistant", func(r chi.Router) {
			if opts.AssistantRequestsPerMinute > 0 {
				r.Use(httprate.LimitByIP(opts.AssistantRequestsPerMinute, time.Minute))
			}
			r.Post("/analyze", h.Analyze)
			r.Post("/suggest", h.Suggest)
			r.Post("/generate", h.Generate)
			r.Post("/import", h.ImportImage)
		})
	})

	return r
}
