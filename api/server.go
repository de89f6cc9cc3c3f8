/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for web clients

ROUTE GROUPS:
  /api/forms/*          Form definitions, session creation
  /api/sessions/*       Session editing, navigation, submit, events
  /api/employee/*       Sandbox HR backend (only without a backend URL)
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Sessions are only as private as their ids.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logger
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	origins := h.allowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Form routes
		r.Route("/forms", func(r chi.Router) {
			r.Get("/", h.ListForms)
			r.Get("/{form}", h.GetForm)
			r.Post("/{form}/sessions", h.CreateSession)
		})

		// Session routes
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Put("/fields/{field}", h.SetField)
			r.Post("/next", h.Next)
			r.Post("/previous", h.Previous)
			r.Post("/submit", h.Submit)
			r.Post("/reset", h.Reset)
			r.Get("/events", h.Events)
		})

		// Sandbox backend routes
		if h.Sandbox != nil {
			r.Route("/employee", func(r chi.Router) {
				r.Get("/requests", h.Sandbox.ListRequests)
				r.Delete("/requests", h.Sandbox.ResetRequests)
				r.Get("/requests/{id}", h.Sandbox.GetRequest)
				r.Post("/{kind}", h.Sandbox.CreateRequest)
			})
		}
	})

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Workforce Hub</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Workforce Hub Form Service</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/forms">/api/forms</a> - List forms</li>
<li><a href="/metrics">/metrics</a> - Metrics</li>
</ul>
</body>
</html>`))
	})

	return r
}
