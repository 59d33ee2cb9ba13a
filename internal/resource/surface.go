package resource

import (
	"sync"
	"time"
)

// Session is the explicit context a surface is mounted with.
type Session struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	SocialAvatar Reference `json:"-"`
	APIBaseURL   string    `json:"api_base_url"`
	MediaBaseURL string    `json:"media_base_url"`
}

// Unmounter is implemented by every Loader.
type Unmounter interface {
	Name() string
	Unmount()
}

// Surface is one mounted UI view. It owns its loaders and its blob scope;
// nothing is shared with other surfaces.
type Surface struct {
	ID        string
	Session   Session
	MountedAt time.Time

	blobs *Scope

	mu        sync.Mutex
	loaders   map[string]Unmounter
	unmounted bool
}

// NewSurface mounts a surface for session.
func NewSurface(id string, session Session, blobs *BlobStore) *Surface {
	return &Surface{
		ID:        id,
		Session:   session,
		MountedAt: time.Now(),
		blobs:     blobs.NewScope(),
		loaders:   make(map[string]Unmounter),
	}
}

// Resolve resolves ref against the surface's media base, issuing blob
// handles from the surface scope.
func (s *Surface) Resolve(ref Reference) (string, bool) {
	return Resolve(ref, s.Session.MediaBaseURL, s.blobs)
}

// Attach registers a loader so it is unmounted with the surface. Attaching
// to an unmounted surface unmounts the loader immediately.
// Revoke drops the handle issued for b, e.g. when a preview is replaced.
func (s *Surface) Revoke(b *Blob) {
	s.blobs.Revoke(b)
}

func (s *Surface) Attach(l Unmounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted {
		l.Unmount()
		return
	}
	s.loaders[l.Name()] = l
}

// Loader returns the attached loader registered under name.
func (s *Surface) Loader(name string) (Unmounter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loaders[name]
	return l, ok
}

// Unmounted reports whether Unmount has been called.
func (s *Surface) Unmounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unmounted
}

// Unmount discards pending results of every loader and releases all blob
// handles issued for this surface.
func (s *Surface) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	loaders := s.loaders
	s.loaders = map[string]Unmounter{}
	s.mu.Unlock()

	for _, l := range loaders {
		l.Unmount()
	}
	s.blobs.Release()
}
