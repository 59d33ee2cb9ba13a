package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/destinyjobs/portal/internal/portal"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *portal.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	bh := NewBlobHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Surfaces.
	r.Post("/surfaces", h.MountSurface)
	r.Get("/surfaces/{id}", h.GetSurface)
	r.Delete("/surfaces/{id}", h.UnmountSurface)

	// Resources of a surface.
	r.Get("/surfaces/{id}/notifications/badge", h.GetBadge)
	r.Get("/surfaces/{id}/{name}", h.GetResource)
	r.Post("/surfaces/{id}/resources/{name}/{action}", h.ResourceAction)
	r.Put("/surfaces/{id}/profile", h.UpdateProfile)

	// Photo preview upload (auth-protected).
	r.Post("/surfaces/{id}/photo", bh.UploadPhoto)

	// Region lookup.
	r.Get("/regions/{country_id}", h.Regions)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// RegisterBlobs mounts GET /blobs/{handle}. Browsers load these from <img>
// tags, which cannot carry a bearer token; handles are unguessable and die
// with their surface.
func RegisterBlobs(r chi.Router, svc *portal.Service) {
	r.Get(blobPattern, NewBlobHandler(svc).ServeBlob)
}
