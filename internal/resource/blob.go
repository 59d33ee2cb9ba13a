package resource

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// BlobPrefix is the URL path under which issued blob handles are served.
const BlobPrefix = "/blobs/"

// ErrScopeReleased is returned when issuing from a released scope.
var ErrScopeReleased = errors.New("blob scope released")

// BlobStore keeps blobs addressable by handle until they are released.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*Blob
}

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]*Blob)}
}

// Get returns the blob for id, if it is still live.
func (s *BlobStore) Get(id string) (*Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	return b, ok
}

// Len returns the number of live blobs.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *BlobStore) put(b *Blob) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = b
	s.mu.Unlock()
	return id
}

func (s *BlobStore) drop(ids []string) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.blobs, id)
	}
	s.mu.Unlock()
}

// Scope issues handles on behalf of one surface and releases all of them at
// once when the surface goes away.
type Scope struct {
	store *BlobStore

	mu       sync.Mutex
	issued   map[*Blob]string
	released bool
}

// NewScope creates a scope backed by store.
func (s *BlobStore) NewScope() *Scope {
	return &Scope{store: s, issued: make(map[*Blob]string)}
}

// Issue implements BlobIssuer. A blob already issued by the scope keeps
// its handle.
func (sc *Scope) Issue(b *Blob) (string, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.released {
		return "", ErrScopeReleased
	}
	if id, ok := sc.issued[b]; ok {
		return BlobPrefix + id, nil
	}
	id := sc.store.put(b)
	sc.issued[b] = id
	return BlobPrefix + id, nil
}

// Revoke invalidates the handle issued for b, if any.
func (sc *Scope) Revoke(b *Blob) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	id, ok := sc.issued[b]
	if !ok {
		return
	}
	delete(sc.issued, b)
	sc.store.drop([]string{id})
}

// Release invalidates every handle issued by the scope. Safe to call twice.
func (sc *Scope) Release() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.released {
		return
	}
	sc.released = true
	ids := make([]string, 0, len(sc.issued))
	for _, id := range sc.issued {
		ids = append(ids, id)
	}
	sc.store.drop(ids)
	sc.issued = nil
}
