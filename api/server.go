/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, copied into the TenantContext
  2. Logger:        Request logging
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the admin frontend
  5. RequireTenant: X-Tenant-ID -> generic.TenantContext (tenant routes)
  6. Rate limit:    Backfill trigger only

ROUTE GROUPS:
  /api/incentives/*  Backfill trigger and run history
  /api/daily-sales/* DailySale records and per-day incentive
  /api/rollups       Week/month totals
  /api/rules         Rule versions
  /api/invoices      Transaction feed
  /api/staff/*       Target baselines
  /api/scenarios/*   Demo scenarios
  /healthz           Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Tenant and rate-limit middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// BackfillRate is the limiter rate for the backfill trigger. Empty
	// disables rate limiting.
	BackfillRate   string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) (*chi.Mux, error) {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TenantHeader},
		AllowCredentials: true,
	}))

	backfillLimit := func(next http.Handler) http.Handler { return next }
	if opts.BackfillRate != "" {
		mw, err := BackfillRateLimit(opts.BackfillRate)
		if err != nil {
			return nil, err
		}
		backfillLimit = mw
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/scenarios", h.ListScenarios)

		r.Group(func(r chi.Router) {
			r.Use(RequireTenant)

			r.Route("/incentives", func(r chi.Router) {
				r.With(backfillLimit).Post("/backfill", h.Backfill)
				r.Get("/backfill/runs", h.ListBackfillRuns)
			})

			r.Route("/daily-sales", func(r chi.Router) {
				r.Get("/", h.ListDailySales)
				r.Get("/{staffId}/{date}/incentive", h.GetIncentive)
			})

			r.Get("/rollups", h.GetRollup)

			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.ListRules)
				r.Post("/", h.CreateRule)
			})

			r.Post("/invoices", h.CreateInvoice)
			r.Put("/staff/{staffId}/baseline", h.SetBaseline)

			r.Post("/scenarios/load", h.LoadScenario)
		})
	})

	return r, nil
}
