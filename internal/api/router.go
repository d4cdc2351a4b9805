package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/othala/internal/refservice"
	"github.com/starford/othala/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *refservice.Service, broker *sse.Broker, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Files CRUD.
	r.Get("/files", h.ListFiles)
	r.Post("/files", h.CreateFile)
	r.Post("/files/move", h.MoveFile)
	r.Get("/files/*", h.GetFile)
	r.Put("/files/*", h.UpdateFile)
	r.Delete("/files/*", h.DeleteFile)

	// Reference queries.
	r.Get("/references", h.References)
	r.Get("/references/counts", h.Counts)
	r.Get("/references/file/*", h.FileReferences)
	r.Post("/rebuild", h.Rebuild)

	// Policies.
	r.Get("/policies", h.Policies)
	r.Put("/policy", h.SetPolicy)

	// Detection.
	r.Get("/detection", h.DetectionMode)
	r.Put("/detection", h.SetDetection)
	r.Get("/detections/*", h.Detections)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
