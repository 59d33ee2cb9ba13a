package portal

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/destinyjobs/portal/internal/apperr"
	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/resource"
)

// Badge is the notification counter as displayed.
type Badge struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
	Unread  int    `json:"unread"`
	Source  string `json:"source"`
	Class   string `json:"class,omitempty"`
}

// NewBadge renders stats.
func NewBadge(stats models.NotificationStats, source string) Badge {
	stats = stats.Normalize()
	text, visible := stats.Badge()
	return Badge{Text: text, Visible: visible, Unread: stats.Unread, Source: source}
}

// resolveAvatar walks the avatar chain. It never fails: when no source
// yields an image the avatar falls back to initials.
func (s *Service) resolveAvatar(ctx context.Context, m *Mounted) (models.Avatar, error) {
	session := m.Surface.Session
	given := session.DisplayName

	ref, winner := resource.ResolveReference(ctx, []resource.Candidate[resource.Reference]{
		{
			Name:     SourcePhotoPreview,
			Priority: 0,
			Fetch: func(context.Context) (resource.Reference, error) {
				if b := m.photoPreview(); b != nil {
					return b, nil
				}
				return resource.Absent{}, nil
			},
		},
		{
			Name:     SourceProviderProfile,
			Priority: 1,
			Fetch: func(ctx context.Context) (resource.Reference, error) {
				p, err := m.client.ProviderProfile(ctx, session.UserID)
				if err != nil {
					return nil, err
				}
				if p.FirstName != "" {
					given = p.FirstName
				}
				return resource.ParseReference(p.Image), nil
			},
		},
		{
			Name:     SourceSocialAvatar,
			Priority: 2,
			Fetch: func(ctx context.Context) (resource.Reference, error) {
				if !resource.IsAbsent(session.SocialAvatar) {
					return session.SocialAvatar, nil
				}
				u, err := m.client.User(ctx, session.UserID)
				if err != nil {
					return nil, err
				}
				return resource.ParseReference(u.SocialAvatar), nil
			},
		},
		{
			Name:     SourceCached,
			Priority: 3,
			Fetch: func(ctx context.Context) (resource.Reference, error) {
				var raw string
				if err := s.recall(ctx, session.UserID, ResourceAvatar, &raw); err != nil {
					return nil, err
				}
				return resource.ParseReference(raw), nil
			},
		},
	})

	av := models.Avatar{Initials: resource.Initials(given, session.Username)}
	url, ok := m.Surface.Resolve(ref)
	if !ok {
		s.logger.Debug("portal: no avatar image, using initials",
			slog.String("kind", string(apperr.KindResolutionFailure)),
			slog.String("surface", m.Surface.ID),
			slog.String("reference", resource.String(ref)))
		av.Source = SourceInitials
		return av, nil
	}
	av.URL, av.Source = url, winner

	if raw, ok := rawReference(ref); ok && (winner == SourceProviderProfile || winner == SourceSocialAvatar) {
		s.remember(ctx, session.UserID, ResourceAvatar, raw)
	}
	return av, nil
}

// rawReference returns the string form worth caching. Blobs are transient
// and never cached.
func rawReference(ref resource.Reference) (string, bool) {
	switch r := ref.(type) {
	case resource.AbsoluteURL:
		return string(r), true
	case resource.RelativePath:
		return string(r), true
	default:
		return "", false
	}
}

// degradeNotifications picks the counter shown after a non-timeout failure:
// the last-known stats, else zero.
func (s *Service) degradeNotifications(ctx context.Context, userID string) (models.NotificationStats, string) {
	stats, winner, ok := resource.ResolveFirst(ctx, []resource.Candidate[models.NotificationStats]{
		{
			Name:     SourceCached,
			Priority: 1,
			Fetch: func(ctx context.Context) (models.NotificationStats, error) {
				var st models.NotificationStats
				err := s.recall(ctx, userID, ResourceNotifications, &st)
				return st, err
			},
		},
		{
			Name:     SourceZero,
			Priority: 2,
			Fetch: func(context.Context) (models.NotificationStats, error) {
				return models.NotificationStats{}, nil
			},
		},
	}, nil)
	if !ok {
		return models.NotificationStats{}.Normalize(), SourceZero
	}
	return stats.Normalize(), winner
}

// Classify sorts err into TIMEOUT or OTHER_ERROR with the service's
// classifier.
func (s *Service) Classify(err error) resource.Class {
	if s.classifier != nil {
		return s.classifier.Classify(err)
	}
	return resource.Classify(err)
}

// ResolveAvatar runs the avatar chain once for session without mounting a
// surface. Photo previews do not apply.
func (s *Service) ResolveAvatar(ctx context.Context, session resource.Session) (models.Avatar, error) {
	session, err := s.withDefaults(session)
	if err != nil {
		return models.Avatar{}, err
	}
	m := &Mounted{
		Surface: resource.NewSurface(uuid.NewString(), session, s.blobs),
		client:  s.client.At(session.APIBaseURL),
	}
	defer m.Surface.Unmount()

	if s.timeouts.Avatar > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Avatar)
		defer cancel()
	}
	return s.resolveAvatar(ctx, m)
}

// NotificationBadge fetches the counter once for session. A timeout is
// returned as an error with Class set; any other failure degrades to the
// cached or zero counter.
func (s *Service) NotificationBadge(ctx context.Context, session resource.Session) (Badge, error) {
	session, err := s.withDefaults(session)
	if err != nil {
		return Badge{}, err
	}

	fctx := ctx
	if s.timeouts.Notifications > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.timeouts.Notifications)
		defer cancel()
	}

	stats, err := s.client.At(session.APIBaseURL).NotificationStats(fctx, session.UserID)
	if err == nil {
		stats = stats.Normalize()
		s.remember(ctx, session.UserID, ResourceNotifications, stats)
		return NewBadge(stats, SourceLive), nil
	}

	class := s.Classify(err)
	if class == resource.ClassTimeout {
		return Badge{Source: SourceLive, Class: class.String()}, err
	}
	s.logger.Warn("portal: notification stats failed, degrading",
		slog.String("user_id", session.UserID),
		slog.String("error", err.Error()))
	stats, source := s.degradeNotifications(ctx, session.UserID)
	b := NewBadge(stats, source)
	b.Class = class.String()
	return b, nil
}
