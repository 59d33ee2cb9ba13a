package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/destinyjobs/portal/internal/checksum"
	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/resource"
)

const maxPhotoBytes = 10 << 20 // 10 MB

// BlobHandler serves photo previews and accepts new ones.
type BlobHandler struct {
	svc *portal.Service
}

// NewBlobHandler creates a handler backed by the service's blob store.
func NewBlobHandler(svc *portal.Service) *BlobHandler {
	return &BlobHandler{svc: svc}
}

// ServeBlob handles GET /blobs/{handle}. Handles stop resolving once the
// surface that issued them is unmounted.
func (h *BlobHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	b, ok := h.svc.Blobs().Get(chi.URLParam(r, "handle"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	etag := checksum.ETag(b.Data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-store")
	if checksum.Match(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	ct := b.ContentType
	if ct == "" {
		ct = http.DetectContentType(b.Data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Data)
}

// UploadPhoto handles POST /api/surfaces/{id}/photo (multipart/form-data,
// field "file"). The photo is kept in memory as the surface's preview.
//
//	@Summary		Upload a photo preview
//	@Tags			surfaces
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Surface id"
//	@Param			file	formData	file	true	"Image"
//	@Success		201		{object}	PhotoUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/surfaces/{id}/photo [post]
func (h *BlobHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		writeJSON(w, http.StatusBadRequest, errorBody("file is not an image"))
		return
	}

	url, err := h.svc.UploadPhoto(chi.URLParam(r, "id"), data, ct)
	if err != nil {
		writeError(w, h.svc, "upload photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, PhotoUploadResponse{
		URL:         url,
		Size:        len(data),
		ContentType: ct,
	})
}

// blobPattern is the route pattern for ServeBlob.
var blobPattern = strings.TrimSuffix(resource.BlobPrefix, "/") + "/{handle}"
