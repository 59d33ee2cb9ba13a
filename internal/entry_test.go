package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/resource"
	"github.com/destinyjobs/portal/internal/testutil"
)

func TestResolveOnce(t *testing.T) {
	f := testutil.NewFakeUpstream(t)
	f.SetProfile(models.ProviderProfile{UserID: "u1", FirstName: "Yao", Image: "/media/y.png"})
	f.SetStats("u1", models.NotificationStats{Total: 5, Unread: 3})

	cfg := NewDefaultConfig()
	cfg.Upstream.APIBaseURL = f.URL
	cfg.Upstream.MediaBaseURL = "https://media.example.com"
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	var out bytes.Buffer
	err := Resolve(context.Background(), &out, resource.Session{UserID: "u1"}, "docs/cv.pdf", WithConfig(cfg))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var res Resolution
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode %s: %v", out.String(), err)
	}
	if res.Avatar.URL != "https://media.example.com/media/y.png" || res.Avatar.Source != portal.SourceProviderProfile {
		t.Errorf("avatar = %+v", res.Avatar)
	}
	if res.Badge.Text != "3" || !res.Badge.Visible {
		t.Errorf("badge = %+v", res.Badge)
	}
	if res.Media == nil || res.Media.URL != "https://media.example.com/docs/cv.pdf" {
		t.Errorf("media = %+v", res.Media)
	}
}

func TestResolveRequiresConfig(t *testing.T) {
	var out bytes.Buffer
	if err := Resolve(context.Background(), &out, resource.Session{UserID: "u1"}, ""); err == nil {
		t.Error("expected error without config")
	}
}

func TestResolveRejectsBlankUser(t *testing.T) {
	f := testutil.NewFakeUpstream(t)
	cfg := NewDefaultConfig()
	cfg.Upstream.APIBaseURL = f.URL
	cfg.Cache.Path = ""

	var out bytes.Buffer
	if err := Resolve(context.Background(), &out, resource.Session{}, "", WithConfig(cfg)); err == nil {
		t.Error("expected validation error for a blank user")
	}
}
