// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/destinyjobs/portal/internal/api"
	"github.com/destinyjobs/portal/internal/cache"
	"github.com/destinyjobs/portal/internal/configwatch"
	"github.com/destinyjobs/portal/internal/mcpserver"
	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/resource"
	"github.com/destinyjobs/portal/internal/sse"
	"github.com/destinyjobs/portal/internal/upstream"
)

// core holds what every command shares.
type core struct {
	cfg    *Config
	logger *slog.Logger
	cache  *cache.DB
	client *upstream.Client
}

func (a *application) setup(ctx context.Context) (*core, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("api_base_url", cfg.Upstream.APIBaseURL),
		slog.String("media_base_url", cfg.Upstream.MediaBaseURL),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt := &core{cfg: cfg, logger: logger}

	if cfg.Cache.Path != "" {
		db, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		rt.cache = db
		if cfg.Cache.MaxAge > 0 {
			n, err := db.Prune(ctx, cfg.Cache.MaxAge)
			if err != nil {
				logger.Warn("cache prune failed", slog.String("error", err.Error()))
			} else if n > 0 {
				logger.Info("cache pruned", slog.Int64("entries", n))
			}
		}
	}

	client, err := upstream.New(cfg.ClientOptions(logger))
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init upstream client: %w", err)
	}
	rt.client = client
	return rt, nil
}

func (rt *core) service(events portal.Publisher) *portal.Service {
	opts := portal.Options{
		Client:       rt.client,
		Events:       events,
		MediaBaseURL: rt.cfg.Upstream.MediaBaseURL,
		Timeouts:     rt.cfg.Resources.Timeouts(),
		Logger:       rt.logger,
	}
	// A nil *cache.DB must not become a non-nil interface.
	if rt.cache != nil {
		opts.Cache = rt.cache
	}
	return portal.NewService(opts)
}

func (rt *core) close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Warn("cache close failed", slog.String("error", err.Error()))
		}
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	rt, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	svc := rt.service(broker)
	defer svc.Shutdown()

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api; blobs are served unauthenticated.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	api.RegisterBlobs(r, svc)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the upstream DNS cache fresh.
	g.Go(func() error {
		rt.client.RefreshDNS(gCtx, cfg.Upstream.DNSRefresh)
		return nil
	})

	// Reload base URLs when the config file changes.
	if app.configPath != "" {
		g.Go(func() error {
			err := configwatch.Watch(gCtx, app.configPath, logger, func() {
				next, err := LoadConfig(app.configPath)
				if err != nil {
					logger.Warn("config reload rejected", slog.String("error", err.Error()))
					return
				}
				svc.SetBaseURLs(next.Upstream.APIBaseURL, next.Upstream.MediaBaseURL)
				logger.Info("base URLs reloaded",
					slog.String("api_base_url", next.Upstream.APIBaseURL),
					slog.String("media_base_url", next.Upstream.MediaBaseURL))
			})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the background loops stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}

	rt, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := rt.service(nil)
	defer svc.Shutdown()

	rt.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Resolution is the one-shot answer of the resolve command.
type Resolution struct {
	UserID string         `json:"user_id"`
	Avatar models.Avatar  `json:"avatar"`
	Badge  portal.Badge   `json:"badge"`
	Media  *resolvedMedia `json:"media,omitempty"`
}

type resolvedMedia struct {
	Reference string `json:"reference"`
	URL       string `json:"url,omitempty"`
}

// Resolve resolves the avatar and notification badge of session once and
// writes the result as JSON to w. ref, when set, is also resolved against
// the media base URL.
func Resolve(ctx context.Context, w io.Writer, session resource.Session, ref string, opts ...Option) error {
	app := &application{logOutput: io.Discard}
	for _, opt := range opts {
		opt(app)
	}

	rt, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := rt.service(nil)
	defer svc.Shutdown()

	res := Resolution{UserID: session.UserID}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		av, err := svc.ResolveAvatar(gCtx, session)
		res.Avatar = av
		return err
	})
	g.Go(func() error {
		// A badge error is a timeout; the zero badge still renders.
		b, err := svc.NotificationBadge(gCtx, session)
		if err != nil {
			rt.logger.Warn("notification badge unavailable", slog.String("error", err.Error()))
		}
		res.Badge = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if ref != "" {
		media := session.MediaBaseURL
		if media == "" {
			media = rt.cfg.Upstream.MediaBaseURL
		}
		parsed := resource.ParseReference(ref)
		url, _ := resource.Resolve(parsed, media, nil)
		res.Media = &resolvedMedia{Reference: resource.String(parsed), URL: url}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
