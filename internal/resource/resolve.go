package resource

import "strings"

// BlobIssuer hands out transient display handles for in-memory blobs.
type BlobIssuer interface {
	Issue(b *Blob) (string, error)
}

// Resolve maps ref to a displayable URL. The boolean is false when there is
// nothing to display; Resolve never panics and never returns an error.
func Resolve(ref Reference, mediaBaseURL string, blobs BlobIssuer) (string, bool) {
	if IsAbsent(ref) {
		return "", false
	}

	switch r := ref.(type) {
	case AbsoluteURL:
		s := strings.TrimSpace(string(r))
		if hasScheme(s) {
			return s, true
		}
		// Scheme-less "absolute" values are served from the media host.
		return joinMedia(mediaBaseURL, s), true
	case RelativePath:
		return joinMedia(mediaBaseURL, strings.TrimSpace(string(r))), true
	case *Blob:
		if blobs == nil {
			return "", false
		}
		handle, err := blobs.Issue(r)
		if err != nil || handle == "" {
			return "", false
		}
		return handle, true
	case Absent:
		return "", false
	default:
		return "", false
	}
}

func joinMedia(base, path string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}
