// Package portal mounts UI surfaces and drives their resource loaders
// against the marketplace API.
package portal

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/destinyjobs/portal/internal/apperr"
	"github.com/destinyjobs/portal/internal/cache"
	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/resource"
	"github.com/destinyjobs/portal/internal/upstream"
)

// Resource names.
const (
	ResourceAvatar        = "avatar"
	ResourceNotifications = "notifications"
	ResourceProfile       = "profile"
)

// Publisher receives load-state transitions. *sse.Broker implements it.
type Publisher interface {
	PublishState(surface, status string, state any)
	CloseSurface(surface string)
}

// Timeouts bounds a single fetch per resource.
type Timeouts struct {
	Avatar        time.Duration
	Notifications time.Duration
	Profile       time.Duration
}

// DefaultTimeouts allows slow profile analyses up to two minutes.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Avatar:        15 * time.Second,
		Notifications: 15 * time.Second,
		Profile:       2 * time.Minute,
	}
}

// Options configures a Service.
type Options struct {
	Client *upstream.Client
	// Cache is optional; without it fallback chains skip the cached source.
	Cache  cache.Store
	Blobs  *resource.BlobStore
	Events Publisher
	// MediaBaseURL is used for sessions that do not carry their own.
	MediaBaseURL string
	Timeouts     Timeouts
	Classifier   *resource.Classifier
	Logger       *slog.Logger
}

// Service owns every mounted surface.
type Service struct {
	client     *upstream.Client
	cache      cache.Store
	blobs      *resource.BlobStore
	events     Publisher
	timeouts   Timeouts
	classifier *resource.Classifier
	logger     *slog.Logger

	// Fetches outlive the HTTP request that triggered them, so they run on
	// the service context.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	apiBase   string
	mediaBase string
	surfaces  map[string]*Mounted
}

// NewService creates a service. Call Shutdown to stop it.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	blobs := opts.Blobs
	if blobs == nil {
		blobs = resource.NewBlobStore()
	}
	timeouts := opts.Timeouts
	if timeouts == (Timeouts{}) {
		timeouts = DefaultTimeouts()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		client:     opts.Client,
		cache:      opts.Cache,
		blobs:      blobs,
		events:     opts.Events,
		timeouts:   timeouts,
		classifier: opts.Classifier,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		mediaBase:  opts.MediaBaseURL,
		surfaces:   make(map[string]*Mounted),
	}
	if opts.Client != nil {
		s.apiBase = opts.Client.BaseURL()
	}
	return s
}

// Blobs returns the store serving /blobs/ handles.
func (s *Service) Blobs() *resource.BlobStore { return s.blobs }

// SetBaseURLs changes the defaults applied to sessions mounted from now on.
// Surfaces already mounted keep the bases they were mounted with.
func (s *Service) SetBaseURLs(apiBase, mediaBase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if apiBase != "" {
		s.apiBase = apiBase
	}
	if mediaBase != "" {
		s.mediaBase = mediaBase
	}
	s.logger.Info("portal: base urls updated",
		slog.String("api_base_url", s.apiBase),
		slog.String("media_base_url", s.mediaBase))
}

// BaseURLs returns the current defaults.
func (s *Service) BaseURLs() (apiBase, mediaBase string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiBase, s.mediaBase
}

func (s *Service) withDefaults(session resource.Session) (resource.Session, error) {
	session.UserID = strings.TrimSpace(session.UserID)
	if session.UserID == "" {
		return session, &apperr.ValidationError{Fields: map[string]string{"user_id": "cannot be blank"}}
	}
	apiBase, mediaBase := s.BaseURLs()
	if session.APIBaseURL == "" {
		session.APIBaseURL = apiBase
	}
	if session.MediaBaseURL == "" {
		session.MediaBaseURL = mediaBase
	}
	if session.SocialAvatar == nil {
		session.SocialAvatar = resource.Absent{}
	}
	return session, nil
}

// Mount creates a surface for session and starts loading its resources.
func (s *Service) Mount(session resource.Session) (*Mounted, error) {
	session, err := s.withDefaults(session)
	if err != nil {
		return nil, err
	}
	if s.ctx.Err() != nil {
		return nil, apperr.ErrSurfaceUnmounted
	}

	m := s.newMounted(uuid.NewString(), session)

	s.mu.Lock()
	s.surfaces[m.Surface.ID] = m
	s.mu.Unlock()

	surfacesMounted.Inc()
	s.logger.Info("portal: surface mounted",
		slog.String("surface", m.Surface.ID),
		slog.String("user_id", session.UserID))

	m.Avatar.Start(s.ctx)
	m.Notifications.Start(s.ctx)
	m.Profile.Start(s.ctx)
	return m, nil
}

// Surface returns a mounted surface.
func (s *Service) Surface(id string) (*Mounted, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.surfaces[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return m, nil
}

// Count returns the number of mounted surfaces.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.surfaces)
}

// Unmount tears down a surface: pending results are discarded, blob handles
// released and event subscribers disconnected.
func (s *Service) Unmount(id string) error {
	s.mu.Lock()
	m, ok := s.surfaces[id]
	delete(s.surfaces, id)
	s.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}

	m.Surface.Unmount()
	if s.events != nil {
		s.events.CloseSurface(id)
	}
	surfacesMounted.Dec()
	s.logger.Info("portal: surface unmounted", slog.String("surface", id))
	return nil
}

// Start, Refresh, Retry and Cancel act on one resource of a surface and
// report whether the loader accepted the request.

func (s *Service) Start(id, name string) (bool, error) {
	return s.control(id, name, func(c controller) bool { return c.Start(s.ctx) })
}

func (s *Service) Refresh(id, name string) (bool, error) {
	return s.control(id, name, func(c controller) bool { return c.Refresh(s.ctx) })
}

func (s *Service) Retry(id, name string) (bool, error) {
	return s.control(id, name, func(c controller) bool { return c.Retry(s.ctx) })
}

func (s *Service) Cancel(id, name string) (bool, error) {
	return s.control(id, name, func(c controller) bool { return c.Cancel() })
}

func (s *Service) control(id, name string, fn func(controller) bool) (bool, error) {
	m, err := s.Surface(id)
	if err != nil {
		return false, err
	}
	c, err := m.controller(name)
	if err != nil {
		return false, err
	}
	return fn(c), nil
}

// State returns the current snapshot of one resource of a surface.
func (s *Service) State(id, name string) (any, error) {
	m, err := s.Surface(id)
	if err != nil {
		return nil, err
	}
	return m.State(name)
}

// UploadPhoto keeps data as the surface's photo preview and returns the
// transient handle it is served under. The avatar is refreshed so the
// preview shows up immediately.
func (s *Service) UploadPhoto(id string, data []byte, contentType string) (string, error) {
	m, err := s.Surface(id)
	if err != nil {
		return "", err
	}
	blob := &resource.Blob{Data: data, ContentType: contentType}
	if resource.IsAbsent(blob) {
		return "", &apperr.ValidationError{Fields: map[string]string{"photo": "cannot be empty"}}
	}
	handle, ok := m.Surface.Resolve(blob)
	if !ok {
		return "", apperr.ErrSurfaceUnmounted
	}
	if prev := m.setPreview(blob); prev != nil {
		m.Surface.Revoke(prev)
	}
	m.Avatar.Refresh(s.ctx)
	return handle, nil
}

// UpdateProfile validates and sends upd for the surface's user, then reloads
// the profile and the avatar. Invalid input never reaches the API.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd upstream.ProviderProfileUpdate) (models.ProviderProfile, error) {
	m, err := s.Surface(id)
	if err != nil {
		return models.ProviderProfile{}, err
	}
	p, err := m.client.UpdateProviderProfile(ctx, m.Surface.Session.UserID, upd)
	if err != nil {
		return models.ProviderProfile{}, err
	}
	if prev := m.setPreview(nil); prev != nil {
		m.Surface.Revoke(prev)
	}
	m.Profile.Refresh(s.ctx)
	m.Avatar.Refresh(s.ctx)
	return p, nil
}

// Regions lists the regions of a country using the default API base.
func (s *Service) Regions(ctx context.Context, countryID string) ([]models.Region, error) {
	if strings.TrimSpace(countryID) == "" {
		return nil, &apperr.ValidationError{Fields: map[string]string{"country_id": "cannot be blank"}}
	}
	apiBase, _ := s.BaseURLs()
	return s.client.At(apiBase).Regions(ctx, countryID)
}

// Shutdown unmounts every surface and waits for in-flight fetches.
func (s *Service) Shutdown() {
	s.cancel()

	s.mu.Lock()
	surfaces := s.surfaces
	s.surfaces = make(map[string]*Mounted)
	s.mu.Unlock()

	for id, m := range surfaces {
		m.Surface.Unmount()
		if s.events != nil {
			s.events.CloseSurface(id)
		}
		surfacesMounted.Dec()
	}
	for _, m := range surfaces {
		m.Wait()
	}
}
