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
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/ledger           Full state snapshot
  /api/metrics          Derived dashboard numbers
  /api/transactions/*   Transaction CRUD
  /api/accounts/*       Bank account CRUD + PIN verification
  /api/goals/*          Savings goals
  /api/investments/*    Investment records
  /api/autopays/*       Recurring payment schedules
  /api/categories/*     Custom categories
  /api/settings         User preferences and budgets
  /api/sync/pending     Writes still waiting on the remote store
  /api/ai/*             LLM-backed parsing and chat

SECURITY NOTE:
  Single-user server; no authentication middleware. Account PINs are an
  in-app gate, not a security boundary.

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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", h.GetLedger)
		r.Get("/metrics", h.GetMetrics)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Put("/{id}", h.UpdateAccount)
			r.Delete("/{id}", h.DeleteAccount)
			r.Post("/{id}/verify-pin", h.VerifyAccountPIN)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Put("/{id}", h.UpdateGoal)
			r.Delete("/{id}", h.DeleteGoal)
			r.Post("/{id}/progress", h.AddGoalProgress)
		})

		r.Route("/investments", func(r chi.Router) {
			r.Get("/", h.ListInvestments)
			r.Post("/", h.CreateInvestment)
			r.Put("/{id}", h.UpdateInvestment)
			r.Delete("/{id}", h.DeleteInvestment)
		})

		r.Route("/autopays", func(r chi.Router) {
			r.Get("/", h.ListAutoPays)
			r.Post("/", h.CreateAutoPay)
			r.Put("/{id}", h.UpdateAutoPay)
			r.Delete("/{id}", h.DeleteAutoPay)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", h.CreateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		r.Put("/settings", h.UpdateSettings)
		r.Get("/sync/pending", h.PendingSync)

		r.Route("/ai", func(r chi.Router) {
			r.Post("/parse", h.ParseTransactions)
			r.Post("/chat", h.Chat)
		})

		// Demo data (dev only)
		r.Post("/seed", h.SeedDemo)
	})

	return r
}
