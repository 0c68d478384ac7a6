// Package api wires pagesync's HTTP surface together: the chi router,
// global middleware, and every handler group (spec §6.1). Unlike the
// teacher, there is no JWT-protected sub-router here — spec.md §1 scopes
// authentication to "forwarding a pre-provisioned bearer token" to the
// workspace, so every route below is reachable without inbound auth.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/relaydocs/pagesync/internal/api/handlers"
	apmiddleware "github.com/relaydocs/pagesync/internal/api/middleware"
	"github.com/relaydocs/pagesync/internal/config"
	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/metrics"
	"github.com/relaydocs/pagesync/internal/upload"
	"github.com/relaydocs/pagesync/internal/workspace"
)

// routeByID is the chi route pattern for resource-by-id endpoints.
const routeByID = "/{id}"

// NewRouter builds the chi router with every pagesync endpoint wired
// in (spec §6.1). Grounded on the teacher's NewRouter: global
// middleware first, then route groups — but single-tenant, with no
// auth sub-router.
func NewRouter(client *workspace.Client, orchestrator *upload.Orchestrator, registry *jobs.Registry, store *jobs.Store, cfg *config.Snapshot) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apmiddleware.BindJobRequestID)
	r.Use(apmiddleware.RequestLogger)
	r.Use(apmiddleware.Metrics)
	r.Use(chimw.Recoverer)

	// Exposed read-only at the process' main listener by default (spec
	// §4.8, §6.1); a deployment that sets METRICS_ADDR to a distinct
	// address gets a second listener serving the same handler instead
	// (internal/server.Server), not a replacement for this route.
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	pageHandler := handlers.NewPageHandler(client, orchestrator, cfg)
	validateHandler := handlers.NewValidateHandler(client)
	compareHandler := handlers.NewCompareHandler(client, cfg)
	databaseHandler := handlers.NewDatabaseHandler(client)
	jobHandler := handlers.NewJobHandler(registry, store)
	statusHandler := handlers.NewStatusHandler(cfg, registry)
	adminHandler := handlers.NewAdminHandler(cfg)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.With(apmiddleware.Deadline).Get("/status", statusHandler.Status)
		r.With(apmiddleware.Deadline).Post("/validate", validateHandler.Validate)

		// Page upload endpoints set their own job deadline (spec §4.3's
		// 180s/300s/480s ladder) and must not be wrapped in
		// apmiddleware.Deadline's shorter backstop.
		r.Route("/pages", func(r chi.Router) {
			r.Post("/", pageHandler.CreatePage)
			r.Patch(routeByID, pageHandler.ReplacePageContent)
			r.Post("/{id}:appendChildren", pageHandler.AppendChildren)
		})

		r.Route("/databases", func(r chi.Router) {
			r.With(apmiddleware.Deadline).Get(routeByID, databaseHandler.Retrieve)
			r.With(apmiddleware.Deadline).Post("/{id}/query", databaseHandler.Query)
		})

		r.Route("/compare", func(r chi.Router) {
			r.With(apmiddleware.Deadline).Get("/health", compareHandler.Health)
			r.With(apmiddleware.Deadline).Post("/notion-page", compareHandler.NotionPage)
			r.With(apmiddleware.Deadline).Post("/notion-db-row", compareHandler.NotionDBRow)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.With(apmiddleware.Deadline).Get(routeByID, jobHandler.Get)
			r.With(apmiddleware.Deadline).Post("/{id}:cancel", jobHandler.Cancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(apmiddleware.Deadline).Post("/config/reload", adminHandler.ReloadConfig)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"success":false,"error":{"code":"not_found","message":"no such route"}}`, http.StatusNotFound)
	})

	return r
}
