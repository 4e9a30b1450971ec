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
  2. RealIP:     Client address behind proxies
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. requestLogger: Structured zerolog access log
  6. requireActor:  X-Actor-ID extraction, applied inside /api/v1

ROUTE GROUPS:
  /api/v1/budgets/*        Budgets and everything nested under them
  /api/v1/transactions/*   Transaction reads and edits by id
  /healthz                 Liveness probe, no auth

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const actorKey contextKey = "actor"

// actorID returns the acting user set by requireActor. It is only
// valid inside routes wrapped by that middleware.
func actorID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(actorKey).(uuid.UUID)
	return id
}

// requireActor rejects requests without a parseable X-Actor-ID header
// and stores the UUID in the request context for handlers.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Actor-ID")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Code:    "unauthorized",
				Message: "missing X-Actor-ID header",
			})
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Code:    "unauthorized",
				Message: "invalid X-Actor-ID header",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, id)))
	})
}

// requestLogger emits one structured log line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireActor)

		// Budget routes and everything scoped under a budget
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)

			r.Route("/{budgetID}", func(r chi.Router) {
				r.Get("/", h.GetBudget)
				r.Put("/", h.UpdateBudget)
				r.Delete("/", h.DeleteBudget)

				r.Route("/categories", func(r chi.Router) {
					r.Get("/", h.ListCategories)
					r.Post("/", h.CreateCategory)
					r.Get("/tree", h.GetCategoryTree)
					r.Post("/reorder", h.ReorderCategories)
					r.Get("/{id}", h.GetCategory)
					r.Put("/{id}", h.UpdateCategory)
					r.Delete("/{id}", h.DeleteCategory)
				})

				r.Route("/envelopes", func(r chi.Router) {
					r.Get("/", h.ListEnvelopes)
					r.Post("/", h.CreateEnvelope)
					r.Post("/reorder", h.ReorderEnvelopes)
					r.Get("/{id}", h.GetEnvelope)
					r.Put("/{id}", h.UpdateEnvelope)
					r.Delete("/{id}", h.DeleteEnvelope)
				})

				r.Route("/payees", func(r chi.Router) {
					r.Get("/", h.ListPayees)
					r.Post("/", h.CreatePayee)
					r.Get("/{id}", h.GetPayee)
					r.Put("/{id}", h.UpdatePayee)
					r.Delete("/{id}", h.DeletePayee)
				})

				r.Route("/income-sources", func(r chi.Router) {
					r.Get("/", h.ListIncomeSources)
					r.Post("/", h.CreateIncomeSource)
					r.Get("/{id}", h.GetIncomeSource)
					r.Put("/{id}", h.UpdateIncomeSource)
					r.Delete("/{id}", h.DeleteIncomeSource)
				})

				r.Route("/transactions", func(r chi.Router) {
					r.Get("/", h.ListTransactions)
					r.Post("/", h.CreateTransaction)
				})
			})
		})

		// Transaction routes addressed by id alone
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Post("/{id}/restore", h.RestoreTransaction)
		})
	})

	return r
}
