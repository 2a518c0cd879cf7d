package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rowanvale/draftforge/internal/notebook"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *notebook.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(WorkspaceMiddleware)

	// Workspace snapshot + canvas patches.
	r.Get("/workspace/latest", h.WorkspaceLatest)
	r.Post("/workspace/note", h.SaveNote)

	// Generation runs.
	r.Post("/runs", h.CreateRun)
	r.Get("/runs/{id}", h.GetRun)

	// Projects.
	r.Put("/projects/{id}/repository", h.SetRepository)

	// Shipping.
	r.Post("/ship/start", h.StartShip)
	r.Get("/ship/jobs/{id}", h.GetShipJob)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
