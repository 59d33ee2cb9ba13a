// Package upstream is the client for the marketplace REST API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/dnscache"
	"github.com/sony/gobreaker"
	"github.com/yosida95/uritemplate/v3"

	"github.com/destinyjobs/portal/internal/apperr"
)

// Endpoint names.
const (
	EndpointNotificationStats = "notification_stats"
	EndpointProviderProfile   = "provider_profile"
	EndpointUser              = "user"
	EndpointRegions           = "regions"
)

// Endpoints maps endpoint names to RFC 6570 path templates.
type Endpoints map[string]string

// DefaultEndpoints are the marketplace API paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		EndpointNotificationStats: "/notifications/stats/{?user_id}",
		EndpointProviderProfile:   "/providers/{user_id}/profile/",
		EndpointUser:              "/auth/users/{user_id}/",
		EndpointRegions:           "/locations/countries/{country_id}/regions/",
	}
}

// BreakerSettings configures the circuit breaker guarding the API.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	ServiceToken   string
	Endpoints      Endpoints
	Breaker        BreakerSettings
	// HTTPClient overrides the default DNS-caching client.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the marketplace API. Copies returned by At share the HTTP
// client, the DNS cache and the circuit breaker.
type Client struct {
	base      string
	token     string
	http      *http.Client
	resolver  *dnscache.Resolver
	breaker   *gobreaker.CircuitBreaker
	templates map[string]*uritemplate.Template
	logger    *slog.Logger
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("upstream: %s %s: status %d", e.Method, e.Path, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap maps 404 to apperr.ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return apperr.ErrNotFound
	}
	return nil
}

// New builds a client. Every endpoint template must parse.
func New(opts Options) (*Client, error) {
	eps := DefaultEndpoints()
	for name, tmpl := range opts.Endpoints {
		eps[name] = tmpl
	}
	templates := make(map[string]*uritemplate.Template, len(eps))
	for name, raw := range eps {
		t, err := uritemplate.New(raw)
		if err != nil {
			return nil, fmt.Errorf("upstream: endpoint %s: %w", name, err)
		}
		templates[name] = t
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		base:      strings.TrimRight(opts.BaseURL, "/"),
		token:     opts.ServiceToken,
		templates: templates,
		logger:    logger,
	}

	if opts.HTTPClient != nil {
		c.http = opts.HTTPClient
	} else {
		c.resolver = &dnscache.Resolver{}
		c.http = &http.Client{
			Timeout:   opts.RequestTimeout,
			Transport: newTransport(c.resolver),
		}
	}

	c.breaker = newBreaker(opts.Breaker, logger)
	return c, nil
}

// At returns a copy of c that talks to baseURL.
func (c *Client) At(baseURL string) *Client {
	if baseURL == "" {
		return c
	}
	cp := *c
	cp.base = strings.TrimRight(baseURL, "/")
	return &cp
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.base }

// RefreshDNS periodically refreshes the DNS cache until ctx is done.
func (c *Client) RefreshDNS(ctx context.Context, every time.Duration) {
	if c.resolver == nil || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.resolver.Refresh(true)
			c.logger.Debug("upstream: dns cache refreshed")
		}
	}
}

func newTransport(resolver *dnscache.Resolver) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses for %s", host)
		}
		return nil, lastErr
	}
	return t
}

func newBreaker(s BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if s.MaxRequests == 0 {
		s.MaxRequests = 5
	}
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 0.8
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketplace-api",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream: circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		// Client errors and caller cancellations say nothing about API health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < 500
		},
	})
}

func (c *Client) expand(endpoint string, vars map[string]string) (string, error) {
	t, ok := c.templates[endpoint]
	if !ok {
		return "", fmt.Errorf("upstream: unknown endpoint %s", endpoint)
	}
	values := uritemplate.Values{}
	for k, v := range vars {
		values.Set(k, uritemplate.String(v))
	}
	return t.Expand(values)
}

func (c *Client) do(ctx context.Context, method, endpoint string, vars map[string]string, in, out any) error {
	path, err := c.expand(endpoint, vars)
	if err != nil {
		return err
	}

	var body []byte
	if in != nil {
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("upstream: encode %s: %w", endpoint, err)
		}
	}

	_, err = c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("upstream: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return nil, &StatusError{
				Method:  method,
				Path:    path,
				Code:    resp.StatusCode,
				Message: strings.TrimSpace(string(msg)),
			}
		}
		if out == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("upstream: decode %s: %w", endpoint, err)
		}
		return nil, nil
	})
	return err
}
