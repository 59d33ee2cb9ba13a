package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/destinyjobs/portal/internal/apperr"
	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/resource"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string            `json:"error" validate:"required"`
	Kind   apperr.Kind       `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps service and upstream errors onto status codes. Input
// rejected before any request gets 400 with the offending fields; upstream
// timeouts get 504 and every other upstream failure 502.
func writeError(w http.ResponseWriter, svc *portal.Service, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	case errors.Is(err, apperr.ErrUnknownResource):
		writeJSON(w, http.StatusNotFound, errorBody("unknown resource"))
		return
	case errors.Is(err, apperr.ErrSurfaceUnmounted):
		writeJSON(w, http.StatusGone, errorBody("surface unmounted"))
		return
	}

	if ve, ok := apperr.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errResponse{
			Error:  "validation failed",
			Kind:   ve.Kind(),
			Fields: ve.Fields,
		})
		return
	}

	if svc.Classify(err) == resource.ClassTimeout {
		slog.Warn(op+" timed out", slog.String("error", err.Error()))
		writeJSON(w, http.StatusGatewayTimeout, errResponse{
			Error: "the server is taking longer than usual, retry later",
			Kind:  apperr.KindFetchTimeout,
		})
		return
	}

	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusBadGateway, errResponse{
		Error: "upstream request failed",
		Kind:  apperr.KindFetchOtherError,
	})
}
