package upstream

import (
	"context"
	"net/http"

	"github.com/destinyjobs/portal/internal/models"
)

// NotificationStats fetches the notification counters for userID.
func (c *Client) NotificationStats(ctx context.Context, userID string) (models.NotificationStats, error) {
	var out models.NotificationStats
	err := c.do(ctx, http.MethodGet, EndpointNotificationStats, map[string]string{"user_id": userID}, nil, &out)
	return out, err
}

// ProviderProfile fetches the provider profile owned by userID.
func (c *Client) ProviderProfile(ctx context.Context, userID string) (models.ProviderProfile, error) {
	var out models.ProviderProfile
	err := c.do(ctx, http.MethodGet, EndpointProviderProfile, map[string]string{"user_id": userID}, nil, &out)
	return out, err
}

// User fetches the session user.
func (c *Client) User(ctx context.Context, userID string) (models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodGet, EndpointUser, map[string]string{"user_id": userID}, nil, &out)
	return out, err
}

// Regions lists the regions of a country.
func (c *Client) Regions(ctx context.Context, countryID string) ([]models.Region, error) {
	var out []models.Region
	err := c.do(ctx, http.MethodGet, EndpointRegions, map[string]string{"country_id": countryID}, nil, &out)
	if out == nil {
		out = []models.Region{}
	}
	return out, err
}

// UpdateProviderProfile validates upd and, only if it is valid, sends it.
func (c *Client) UpdateProviderProfile(ctx context.Context, userID string, upd ProviderProfileUpdate) (models.ProviderProfile, error) {
	if err := upd.Validate(); err != nil {
		return models.ProviderProfile{}, err
	}
	var out models.ProviderProfile
	err := c.do(ctx, http.MethodPatch, EndpointProviderProfile, map[string]string{"user_id": userID}, upd, &out)
	return out, err
}
