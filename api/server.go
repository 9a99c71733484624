/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from proxy headers
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for clients

ROUTE GROUPS:
  /api/users/*              User records, balances, submissions
  /api/brands/*             Brand catalog
  /api/transactions/*       Approval workflow actions
  /api/submissions/*        Pre-signup staging flow
  /api/admin/*              Operator endpoints

SECURITY NOTE:
  No authentication middleware. Operator endpoints are expected to sit
  behind a gateway that handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Post("/{id}/submissions", h.SubmitRewardRequest)
			r.Post("/{id}/welcome-bonus", h.GrantWelcomeBonus)
		})

		// Brand routes
		r.Route("/brands", func(r chi.Router) {
			r.Get("/", h.ListBrands)
			r.Post("/", h.CreateBrand)
		})

		// Approval workflow routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/{id}/approve", h.ApproveTransaction)
			r.Post("/{id}/reject", h.RejectTransaction)
			r.Post("/{id}/pay", h.MarkTransactionPaid)
		})

		// Pre-signup staging routes
		r.Route("/submissions/pending", func(r chi.Router) {
			r.Post("/", h.StagePendingSubmission)
			r.Post("/claim", h.ClaimPendingSubmission)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/transactions/pending", h.ListPendingTransactions)
			r.Post("/adjustments", h.AdjustBalance)
			r.Post("/sweep", h.RunSweeps)
		})
	})

	return r
}
