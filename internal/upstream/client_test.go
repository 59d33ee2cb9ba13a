package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/destinyjobs/portal/internal/apperr"
	"github.com/destinyjobs/portal/internal/resource"
)

func testClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL + "/api/"
	if opts.HTTPClient == nil {
		opts.HTTPClient = srv.Client()
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNotificationStats(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotAuth = r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"total":10,"unread":4,"today":1,"this_week":3,"by_type":{"message":4},"by_priority":{"high":1}}`))
	}), Options{ServiceToken: "svc"})

	stats, err := c.NotificationStats(context.Background(), "u 1")
	if err != nil {
		t.Fatalf("NotificationStats: %v", err)
	}
	if gotPath != "/api/notifications/stats/" || gotQuery != "user_id=u%201" {
		t.Errorf("request = %s?%s", gotPath, gotQuery)
	}
	if gotAuth != "Bearer svc" {
		t.Errorf("auth = %q", gotAuth)
	}
	if stats.Unread != 4 || stats.ByType["message"] != 4 || stats.ThisWeek != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRegionsTemplateExpansion(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "lt", "name": "Littoral", "country_id": "cm"}})
	}), Options{})

	regions, err := c.Regions(context.Background(), "cm/x")
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if gotPath != "/api/locations/countries/cm%2Fx/regions/" {
		t.Errorf("path = %q", gotPath)
	}
	if len(regions) != 1 || regions[0].Name != "Littoral" {
		t.Errorf("regions = %+v", regions)
	}
}

func TestCustomEndpointTemplate(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"user_id":"u1","image":"/media/p.png"}`))
	}), Options{Endpoints: Endpoints{EndpointProviderProfile: "/v2/profiles/{user_id}"}})

	p, err := c.ProviderProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ProviderProfile: %v", err)
	}
	if gotPath != "/api/v2/profiles/u1" || p.Image != "/media/p.png" {
		t.Errorf("path = %q, profile = %+v", gotPath, p)
	}
}

func TestBadTemplateRejected(t *testing.T) {
	if _, err := New(Options{Endpoints: Endpoints{"broken": "/x/{unclosed"}}); err == nil {
		t.Fatal("expected template parse error")
	}
}

func TestStatusErrors(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/providers/missing/profile/" {
			http.Error(w, "no profile", http.StatusNotFound)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}), Options{})

	_, err := c.ProviderProfile(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("404 should map to ErrNotFound, got %v", err)
	}

	_, err = c.NotificationStats(context.Background(), "u1")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 500 || se.Message != "boom" {
		t.Fatalf("err = %v", err)
	}
	if resource.Classify(err) != resource.ClassOtherError {
		t.Errorf("500 should classify as OTHER_ERROR")
	}
}

func TestSlowUpstreamClassifiesAsTimeout(t *testing.T) {
	release := make(chan struct{})
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), Options{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.ProviderProfile(ctx, "u1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if resource.Classify(err) != resource.ClassTimeout {
		t.Errorf("slow call classified as %s: %v", resource.Classify(err), err)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), Options{Breaker: BreakerSettings{MinRequests: 2, FailureThreshold: 0.5, Timeout: time.Minute}})

	for i := 0; i < 2; i++ {
		_, _ = c.NotificationStats(context.Background(), "u1")
	}
	_, err := c.NotificationStats(context.Background(), "u1")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, open breaker must not reach the API", hits.Load())
	}
	if resource.Classify(err) != resource.ClassOtherError {
		t.Error("open breaker should classify as OTHER_ERROR")
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), Options{Breaker: BreakerSettings{MinRequests: 1, FailureThreshold: 0.1}})

	for i := 0; i < 5; i++ {
		_, err := c.User(context.Background(), "ghost")
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatal("404s must not open the breaker")
		}
	}
}

func TestAtSharesBreakerWithNewBase(t *testing.T) {
	c, err := New(Options{BaseURL: "http://a/"})
	if err != nil {
		t.Fatal(err)
	}
	d := c.At("http://b/api/")
	if d.BaseURL() != "http://b/api" || c.BaseURL() != "http://a" {
		t.Errorf("bases = %q, %q", c.BaseURL(), d.BaseURL())
	}
	if d.breaker != c.breaker {
		t.Error("At should share the breaker")
	}
	if c.At("") != c {
		t.Error("At(\"\") should return the receiver")
	}
}
