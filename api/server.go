/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for the dashboard frontend
  4. Session:    Bearer-token auth on everything except /api/login

ROUTE GROUPS:
  /api/login              Token issue (public)
  /api/tasks/*            Task listing and mutations
  /api/calendar, .ics     Occurrence views
  /api/reports/*          Completion statistics
  /api/sync               Manual cache refresh (admin)

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		// Everything below needs a session
		r.Group(func(r chi.Router) {
			r.Use(h.Tokens.RequireSession)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListTasks)
				r.With(RequireAdmin).Post("/", h.CreateTask)
				r.Get("/{id}", h.GetTask)
				r.Put("/{id}/status", h.UpdateStatus)
				r.With(RequireAdmin).Put("/{id}/admin-done", h.SetAdminDone)
			})

			r.Get("/calendar", h.Calendar)
			r.Get("/calendar.ics", h.CalendarICS)
			r.Get("/reports/completion", h.CompletionReport)

			r.With(RequireAdmin).Post("/sync", h.TriggerSync)
		})
	})

	return r
}
