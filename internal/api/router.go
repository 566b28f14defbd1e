package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultvec/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// pub, if non-nil, receives sync and purge notifications.
// sseHandler, if non-nil, is mounted at GET /events; it also accepts the
// token as ?access_token=.
func NewRouter(svc *noteservice.Service, pub Publisher, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, pub)

	r := chi.NewRouter()

	if sseHandler != nil {
		r.With(StreamAuthMiddleware(authEnabled, token)).Get("/events", sseHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))
		routes(r, h)
	})

	return r
}

func routes(r chi.Router, h *Handler) {
	// Indexing.
	r.Post("/index", h.Index)
	r.Post("/sync", h.Sync)

	// Retrieval.
	r.Post("/search", h.Search)
	r.Post("/connections", h.Connections)
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)

	// Maintenance.
	r.Get("/stats", h.Stats)
	r.Get("/list-indexed", h.ListIndexed)
	r.Get("/orphans", h.Orphans)
	r.Post("/cleanup", h.Cleanup)
}
