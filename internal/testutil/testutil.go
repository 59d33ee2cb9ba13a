// Package testutil provides shared test helpers: a temporary last-known-good
// cache and a fake marketplace API.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/destinyjobs/portal/internal/cache"
	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/upstream"
)

// TestCache creates a temporary SQLite cache that is automatically cleaned up.
func TestCache(t *testing.T) *cache.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "portal-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Fake API routes, used as keys for Fail, Hold and Hits.
const (
	RouteStats   = "stats"
	RouteProfile = "profile"
	RouteUser    = "user"
	RouteRegions = "regions"
)

// FakeUpstream is an in-process marketplace API serving canned payloads
// under /api/.
type FakeUpstream struct {
	URL    string
	Client *upstream.Client

	mu       sync.Mutex
	stats    map[string]models.NotificationStats
	profiles map[string]models.ProviderProfile
	users    map[string]models.User
	regions  map[string][]models.Region
	failures map[string]int
	holds    map[string]chan struct{}
	hits     map[string]int
}

// NewFakeUpstream starts a fake API and a client pointed at it.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{
		stats:    make(map[string]models.NotificationStats),
		profiles: make(map[string]models.ProviderProfile),
		users:    make(map[string]models.User),
		regions:  make(map[string][]models.Region),
		failures: make(map[string]int),
		holds:    make(map[string]chan struct{}),
		hits:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/notifications/stats/", f.handle(RouteStats, func(r *http.Request) (any, bool) {
			s, ok := f.stats[r.URL.Query().Get("user_id")]
			return s, ok
		}))
		r.Get("/providers/{user_id}/profile/", f.handle(RouteProfile, func(r *http.Request) (any, bool) {
			p, ok := f.profiles[chi.URLParam(r, "user_id")]
			return p, ok
		}))
		r.Patch("/providers/{user_id}/profile/", f.handle(RouteProfile, func(r *http.Request) (any, bool) {
			id := chi.URLParam(r, "user_id")
			p := f.profiles[id]
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				return nil, false
			}
			p.UserID = id
			f.profiles[id] = p
			return p, true
		}))
		r.Get("/auth/users/{user_id}/", f.handle(RouteUser, func(r *http.Request) (any, bool) {
			u, ok := f.users[chi.URLParam(r, "user_id")]
			return u, ok
		}))
		r.Get("/locations/countries/{country_id}/regions/", f.handle(RouteRegions, func(r *http.Request) (any, bool) {
			regions, ok := f.regions[chi.URLParam(r, "country_id")]
			return regions, ok
		}))
	})

	srv := httptest.NewServer(r)
	f.URL = srv.URL + "/api"

	c, err := upstream.New(upstream.Options{
		BaseURL:    f.URL,
		HTTPClient: srv.Client(),
		// Keep the breaker out of the way of failure-injection tests.
		Breaker: upstream.BreakerSettings{MinRequests: 1 << 20, Timeout: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.Client = c

	t.Cleanup(func() {
		f.mu.Lock()
		for route, ch := range f.holds {
			close(ch)
			delete(f.holds, route)
		}
		f.mu.Unlock()
		srv.Close()
	})
	return f
}

func (f *FakeUpstream) handle(route string, lookup func(*http.Request) (any, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[route]++
		hold := f.holds[route]
		f.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		f.mu.Lock()
		code := f.failures[route]
		var v any
		var ok bool
		if code == 0 {
			v, ok = lookup(r)
		}
		f.mu.Unlock()

		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

// SetStats sets the notification stats served for userID.
func (f *FakeUpstream) SetStats(userID string, s models.NotificationStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[userID] = s
}

// SetProfile sets the provider profile served for p.UserID.
func (f *FakeUpstream) SetProfile(p models.ProviderProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
}

// SetUser sets the user object served for u.ID.
func (f *FakeUpstream) SetUser(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// SetRegions sets the regions served for countryID.
func (f *FakeUpstream) SetRegions(countryID string, regions []models.Region) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[countryID] = regions
}

// Fail makes route answer with code. Zero restores normal answers.
func (f *FakeUpstream) Fail(route string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = code
}

// Hold stalls every request to route until the returned release func is
// called or the client gives up.
func (f *FakeUpstream) Hold(route string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[route] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[route] == ch {
				delete(f.holds, route)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
}

// Hits returns how many requests route has received.
func (f *FakeUpstream) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}
