package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/upstream"
)

// Handler holds API route handlers.
type Handler struct {
	svc *portal.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *portal.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) mounted(w http.ResponseWriter, r *http.Request) (*portal.Mounted, bool) {
	m, err := h.svc.Surface(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.svc, "get surface", err)
		return nil, false
	}
	return m, true
}

// MountSurface handles POST /api/surfaces.
//
//	@Summary		Mount a surface and start loading its resources
//	@Tags			surfaces
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MountRequest	true	"Session"
//	@Success		201		{object}	SurfaceResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces [post]
func (h *Handler) MountSurface(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req MountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	m, err := h.svc.Mount(req.Session())
	if err != nil {
		writeError(w, h.svc, "mount surface", err)
		return
	}
	writeJSON(w, http.StatusCreated, surfaceResponse(m))
}

// GetSurface handles GET /api/surfaces/{id}.
//
//	@Summary		Get a surface with the state of every resource
//	@Tags			surfaces
//	@Produce		json
//	@Param			id	path		string	true	"Surface id"
//	@Success		200	{object}	SurfaceResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id} [get]
func (h *Handler) GetSurface(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mounted(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, surfaceResponse(m))
}

// UnmountSurface handles DELETE /api/surfaces/{id}.
//
//	@Summary		Unmount a surface
//	@Tags			surfaces
//	@Param			id	path	string	true	"Surface id"
//	@Success		204	"Surface unmounted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id} [delete]
func (h *Handler) UnmountSurface(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unmount(chi.URLParam(r, "id")); err != nil {
		writeError(w, h.svc, "unmount surface", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetResource handles GET /api/surfaces/{id}/{name} for avatar,
// notifications and profile.
//
//	@Summary		Get the load state of one resource
//	@Tags			resources
//	@Produce		json
//	@Param			id		path		string	true	"Surface id"
//	@Param			name	path		string	true	"Resource"	Enums(avatar, notifications, profile)
//	@Success		200		{object}	AvatarState
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id}/{name} [get]
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.State(chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.svc, "get resource", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetBadge handles GET /api/surfaces/{id}/notifications/badge.
//
//	@Summary		Get the notification badge
//	@Tags			resources
//	@Produce		json
//	@Param			id	path		string	true	"Surface id"
//	@Success		200	{object}	BadgeResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id}/notifications/badge [get]
func (h *Handler) GetBadge(w http.ResponseWriter, r *http.Request) {
	m, ok := h.mounted(w, r)
	if !ok {
		return
	}
	st := m.Notifications.State()
	writeJSON(w, http.StatusOK, BadgeResponse{
		Badge:      badgeFor(st),
		Status:     st.Status,
		Affordance: st.Affordance,
	})
}

// ResourceAction handles POST /api/surfaces/{id}/resources/{name}/{action}
// where action is start, refresh, retry or cancel.
//
//	@Summary		Act on a resource load
//	@Tags			resources
//	@Produce		json
//	@Param			id		path		string	true	"Surface id"
//	@Param			name	path		string	true	"Resource"	Enums(avatar, notifications, profile)
//	@Param			action	path		string	true	"Action"	Enums(start, refresh, retry, cancel)
//	@Success		202		{object}	ActionResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id}/resources/{name}/{action} [post]
func (h *Handler) ResourceAction(w http.ResponseWriter, r *http.Request) {
	id, name, action := chi.URLParam(r, "id"), chi.URLParam(r, "name"), chi.URLParam(r, "action")

	var do func(string, string) (bool, error)
	switch action {
	case "start":
		do = h.svc.Start
	case "refresh":
		do = h.svc.Refresh
	case "retry":
		do = h.svc.Retry
	case "cancel":
		do = h.svc.Cancel
	default:
		writeJSON(w, http.StatusNotFound, errorBody("unknown action"))
		return
	}

	accepted, err := do(id, name)
	if err != nil {
		writeError(w, h.svc, action+" resource", err)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusConflict, errorBody(action+" is not available in the current state"))
		return
	}
	st, err := h.svc.State(id, name)
	if err != nil {
		writeError(w, h.svc, "get resource", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ActionResponse{Accepted: true, State: st})
}

// UpdateProfile handles PUT /api/surfaces/{id}/profile.
//
//	@Summary		Update the provider profile
//	@Tags			resources
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Surface id"
//	@Param			body	body		upstream.ProviderProfileUpdate	true	"Profile fields"
//	@Success		200		{object}	models.ProviderProfile
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		504		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id}/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var upd upstream.ProviderProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeError(w, h.svc, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Regions handles GET /api/regions/{country_id}.
//
//	@Summary		List the regions of a country
//	@Tags			regions
//	@Produce		json
//	@Param			country_id	path		string	true	"Country id"
//	@Success		200			{object}	RegionsResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/regions/{country_id} [get]
func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.svc.Regions(r.Context(), chi.URLParam(r, "country_id"))
	if err != nil {
		writeError(w, h.svc, "list regions", err)
		return
	}
	writeJSON(w, http.StatusOK, RegionsResponse{Regions: regions})
}
