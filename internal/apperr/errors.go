// Package apperr holds the error taxonomy shared by the service layers.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind names an error category.
type Kind string

const (
	KindResolutionFailure Kind = "RESOLUTION_FAILURE"
	KindFetchTimeout      Kind = "FETCH_TIMEOUT"
	KindFetchOtherError   Kind = "FETCH_OTHER_ERROR"
	KindValidationError   Kind = "VALIDATION_ERROR"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrSurfaceUnmounted = errors.New("surface unmounted")
	ErrUnknownResource  = errors.New("unknown resource")
)

// ValidationError lists field-level messages for input rejected before any
// request was sent.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// Error implements error with fields in stable order.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Kind returns KindValidationError.
func (e *ValidationError) Kind() Kind { return KindValidationError }

// AsValidation unwraps a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
