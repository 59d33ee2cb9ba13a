package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/destinyjobs/portal/internal/apperr"
	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/resource"
	"github.com/destinyjobs/portal/internal/upstream"
)

// Source names used in fallback chains and reported in Avatar.Source.
const (
	SourcePhotoPreview    = "photo_preview"
	SourceProviderProfile = "provider_profile"
	SourceSocialAvatar    = "social_avatar"
	SourceCached          = "cached"
	SourceInitials        = "initials"
	SourceLive            = "live"
	SourceZero            = "zero"
)

// Mounted is a surface together with the loaders it owns.
type Mounted struct {
	Surface       *resource.Surface
	Avatar        *resource.Loader[models.Avatar]
	Notifications *resource.Loader[models.NotificationStats]
	Profile       *resource.Loader[models.ProviderProfile]

	client *upstream.Client

	mu      sync.Mutex
	preview *resource.Blob
}

type controller interface {
	Start(ctx context.Context) bool
	Refresh(ctx context.Context) bool
	Retry(ctx context.Context) bool
	Cancel() bool
}

func (s *Service) newMounted(id string, session resource.Session) *Mounted {
	m := &Mounted{
		Surface: resource.NewSurface(id, session, s.blobs),
		client:  s.client.At(session.APIBaseURL),
	}
	logger := s.logger.With(slog.String("surface", id))

	// The avatar chain ends in initials and never fails, so this loader has
	// no TIMEOUT state and never offers retry.
	m.Avatar = resource.NewLoader(resource.LoaderConfig[models.Avatar]{
		Name:       ResourceAvatar,
		Fetch:      func(ctx context.Context) (models.Avatar, error) { return s.resolveAvatar(ctx, m) },
		Fallback:   models.Avatar{Initials: resource.Initials(session.DisplayName, session.Username), Source: SourceInitials},
		Timeout:    s.timeouts.Avatar,
		Classifier: s.classifier,
		Logger:     logger,
		OnChange:   publish[models.Avatar](s, id),
	})

	zero := models.NotificationStats{}.Normalize()
	m.Notifications = resource.NewLoader(resource.LoaderConfig[models.NotificationStats]{
		Name: ResourceNotifications,
		Fetch: func(ctx context.Context) (models.NotificationStats, error) {
			stats, err := m.client.NotificationStats(ctx, session.UserID)
			if err != nil {
				return stats, err
			}
			s.remember(ctx, session.UserID, ResourceNotifications, stats.Normalize())
			return stats, nil
		},
		Fallback: zero,
		Degrade: func(ctx context.Context) models.NotificationStats {
			stats, _ := s.degradeNotifications(ctx, session.UserID)
			return stats
		},
		Normalize:  models.NotificationStats.Normalize,
		Timeout:    s.timeouts.Notifications,
		Classifier: s.classifier,
		Logger:     logger,
		OnChange:   publish[models.NotificationStats](s, id),
	})

	m.Profile = resource.NewLoader(resource.LoaderConfig[models.ProviderProfile]{
		Name: ResourceProfile,
		Fetch: func(ctx context.Context) (models.ProviderProfile, error) {
			p, err := m.client.ProviderProfile(ctx, session.UserID)
			if err != nil {
				return p, err
			}
			p.ImageURL, _ = m.Surface.Resolve(resource.ParseReference(p.Image))
			p.Initials = resource.Initials(p.FirstName, session.Username)
			return p, nil
		},
		Timeout:    s.timeouts.Profile,
		Classifier: s.classifier,
		Logger:     logger,
		OnChange:   publish[models.ProviderProfile](s, id),
	})

	m.Surface.Attach(m.Avatar)
	m.Surface.Attach(m.Notifications)
	m.Surface.Attach(m.Profile)
	return m
}

func publish[T any](s *Service, surface string) func(resource.State[T]) {
	if s.events == nil {
		return nil
	}
	return func(st resource.State[T]) {
		s.events.PublishState(surface, string(st.Status), st)
	}
}

func (m *Mounted) controller(name string) (controller, error) {
	switch name {
	case ResourceAvatar:
		return m.Avatar, nil
	case ResourceNotifications:
		return m.Notifications, nil
	case ResourceProfile:
		return m.Profile, nil
	}
	return nil, apperr.ErrUnknownResource
}

// State returns the snapshot of the named resource.
func (m *Mounted) State(name string) (any, error) {
	switch name {
	case ResourceAvatar:
		return m.Avatar.State(), nil
	case ResourceNotifications:
		return m.Notifications.State(), nil
	case ResourceProfile:
		return m.Profile.State(), nil
	}
	return nil, apperr.ErrUnknownResource
}

// Wait blocks until every fetch started for the surface has returned.
func (m *Mounted) Wait() {
	m.Avatar.Wait()
	m.Notifications.Wait()
	m.Profile.Wait()
}

// setPreview installs b and returns the preview it replaces.
func (m *Mounted) setPreview(b *resource.Blob) *resource.Blob {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.preview
	m.preview = b
	return prev
}

func (m *Mounted) photoPreview() *resource.Blob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preview
}

// remember stores v as the last-known-good payload. Cache failures only cost
// a fallback candidate, so they are logged and dropped.
func (s *Service) remember(ctx context.Context, userID, name string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, userID, name, v); err != nil {
		s.logger.Warn("portal: cache write failed",
			slog.String("resource", name),
			slog.String("error", err.Error()))
	}
}

func (s *Service) recall(ctx context.Context, userID, name string, out any) error {
	if s.cache == nil {
		return apperr.ErrNotFound
	}
	_, err := s.cache.Get(ctx, userID, name, out)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("portal: cache read failed",
			slog.String("resource", name),
			slog.String("error", err.Error()))
	}
	return err
}
