package api

import (
	"time"

	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/resource"
)

// MountRequest is the request body for mounting a surface.
type MountRequest struct {
	UserID       string `json:"user_id" example:"42" validate:"required"`
	DisplayName  string `json:"display_name,omitempty" example:"Amina Kouassi"`
	Username     string `json:"username,omitempty" example:"amina.k"`
	SocialAvatar string `json:"social_avatar,omitempty" example:"https://lh3.googleusercontent.com/a/x"`
	APIBaseURL   string `json:"api_base_url,omitempty" example:"https://api.example.com/api"`
	MediaBaseURL string `json:"media_base_url,omitempty" example:"https://api.example.com"`
}

// Session converts the request into the explicit surface context.
func (r MountRequest) Session() resource.Session {
	return resource.Session{
		UserID:       r.UserID,
		DisplayName:  r.DisplayName,
		Username:     r.Username,
		SocialAvatar: resource.ParseReference(r.SocialAvatar),
		APIBaseURL:   r.APIBaseURL,
		MediaBaseURL: r.MediaBaseURL,
	}
}

// AvatarState is the avatar load state.
type AvatarState = resource.State[models.Avatar]

// NotificationsState is the notification stats load state.
type NotificationsState = resource.State[models.NotificationStats]

// ProfileState is the provider profile load state.
type ProfileState = resource.State[models.ProviderProfile]

// SurfaceResponse describes a mounted surface and its resources.
type SurfaceResponse struct {
	ID            string             `json:"id" example:"0b9a3c1e-4b7f-4f7e-9a55-2c4d3f1e8a90" validate:"required"`
	Session       resource.Session   `json:"session" validate:"required"`
	MountedAt     time.Time          `json:"mounted_at"`
	Avatar        AvatarState        `json:"avatar"`
	Notifications NotificationsState `json:"notifications"`
	Profile       ProfileState       `json:"profile"`
	Badge         portal.Badge       `json:"badge"`
}

func surfaceResponse(m *portal.Mounted) SurfaceResponse {
	n := m.Notifications.State()
	return SurfaceResponse{
		ID:            m.Surface.ID,
		Session:       m.Surface.Session,
		MountedAt:     m.Surface.MountedAt,
		Avatar:        m.Avatar.State(),
		Notifications: n,
		Profile:       m.Profile.State(),
		Badge:         badgeFor(n),
	}
}

// BadgeResponse is the notification badge of a surface.
type BadgeResponse struct {
	portal.Badge
	Status     resource.Status      `json:"status"`
	Affordance *resource.Affordance `json:"affordance,omitempty"`
}

func badgeFor(st NotificationsState) portal.Badge {
	b := portal.NewBadge(st.Value, portal.SourceLive)
	b.Class = st.Class
	if st.Status == resource.StatusFailed {
		b.Source = "fallback"
	}
	return b
}

// ActionResponse is returned when a resource action was accepted.
type ActionResponse struct {
	Accepted bool `json:"accepted"`
	State    any  `json:"state"`
}

// PhotoUploadResponse is returned after a photo preview upload.
type PhotoUploadResponse struct {
	URL         string `json:"url" example:"/blobs/6f1c2b0e-3a8d-4d35-9a0e-8f7d7d1c2b3a" validate:"required"`
	Size        int    `json:"size" example:"12345" validate:"required"`
	ContentType string `json:"content_type" example:"image/png"`
}

// RegionsResponse wraps a country's regions.
type RegionsResponse struct {
	Regions []models.Region `json:"regions" validate:"required"`
}
