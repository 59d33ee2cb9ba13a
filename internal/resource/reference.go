// Package resource implements resilient acquisition of displayable resources:
// reference resolution, prioritized fallback chains, timeout classification,
// and the per-surface load state machine.
package resource

import "strings"

// Reference points at a displayable asset before it is turned into a URL.
//
// It is a closed set: AbsoluteURL, RelativePath, Blob and Absent are the only
// implementations. Consumers switch over all four.
type Reference interface {
	isReference()
}

// AbsoluteURL is a fully qualified http(s) URL.
type AbsoluteURL string

// RelativePath is a path relative to the media base URL.
type RelativePath string

// Blob is an in-memory asset (e.g. a photo picked for upload) that has no
// network URL yet.
type Blob struct {
	Data        []byte
	ContentType string
}

// Absent means no asset.
type Absent struct{}

func (AbsoluteURL) isReference()  {}
func (RelativePath) isReference() {}
func (*Blob) isReference()        {}
func (Absent) isReference()       {}

// IsAbsent reports whether ref yields nothing displayable. A nil reference,
// an empty blob and blank strings count as absent.
func IsAbsent(ref Reference) bool {
	switch r := ref.(type) {
	case nil:
		return true
	case Absent:
		return true
	case AbsoluteURL:
		return strings.TrimSpace(string(r)) == ""
	case RelativePath:
		return strings.TrimSpace(string(r)) == ""
	case *Blob:
		return r == nil || len(r.Data) == 0
	default:
		return true
	}
}

// ParseReference classifies a raw string field as received from the API.
func ParseReference(raw string) Reference {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Absent{}
	case hasScheme(raw):
		return AbsoluteURL(raw)
	default:
		return RelativePath(raw)
	}
}

// String renders the reference for logs.
func String(ref Reference) string {
	switch r := ref.(type) {
	case AbsoluteURL:
		return "absolute:" + string(r)
	case RelativePath:
		return "relative:" + string(r)
	case *Blob:
		if r == nil {
			return "blob:nil"
		}
		return "blob:" + r.ContentType
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

var schemes = []string{"http://", "https://"}

func hasScheme(s string) bool {
	for _, p := range schemes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return true
		}
	}
	return false
}
