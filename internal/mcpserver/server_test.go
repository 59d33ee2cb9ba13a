package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/destinyjobs/portal/internal/models"
	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.FakeUpstream) {
	t.Helper()

	f := testutil.NewFakeUpstream(t)
	svc := portal.NewService(portal.Options{
		Client:       f.Client,
		MediaBaseURL: "http://media.test",
		Timeouts:     portal.Timeouts{Avatar: time.Second, Notifications: 50 * time.Millisecond, Profile: time.Second},
	})
	t.Cleanup(svc.Shutdown)
	return New(svc), f
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "resolve_url":
		result, err = srv.resolveURL(ctx, req)
	case "resolve_avatar":
		result, err = srv.resolveAvatar(ctx, req)
	case "notification_badge":
		result, err = srv.notificationBadge(ctx, req)
	case "list_regions":
		result, err = srv.listRegions(ctx, req)
	case "get_display_rules":
		result, err = srv.getDisplayRules(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decode(t *testing.T, r *mcp.CallToolResult, v any) {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
}

func TestResolveURL(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		ref, media, want string
		display          bool
	}{
		{"/media/a.png", "", "http://media.test/media/a.png", true},
		{"media/a.png", "https://cdn.test/", "https://cdn.test/media/a.png", true},
		{"https://img.test/a.png", "", "https://img.test/a.png", true},
		{"   ", "", "", false},
	}
	for _, tt := range tests {
		args := map[string]interface{}{"reference": tt.ref}
		if tt.media != "" {
			args["media_base_url"] = tt.media
		}
		var got resolvedURL
		decode(t, callTool(t, srv, "resolve_url", args), &got)
		if got.URL != tt.want || got.Display != tt.display {
			t.Errorf("resolve_url(%q) = %+v, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestResolveURLRequiresReference(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "resolve_url", map[string]interface{}{}); !r.IsError {
		t.Error("expected error without reference")
	}
}

func TestResolveAvatar(t *testing.T) {
	srv, f := testServer(t)
	f.SetProfile(models.ProviderProfile{UserID: "u1", Image: "/media/p.png"})

	var av models.Avatar
	decode(t, callTool(t, srv, "resolve_avatar", map[string]interface{}{"user_id": "u1"}), &av)
	if av.URL != "http://media.test/media/p.png" || av.Source != portal.SourceProviderProfile {
		t.Errorf("avatar = %+v", av)
	}

	var initials models.Avatar
	decode(t, callTool(t, srv, "resolve_avatar", map[string]interface{}{
		"user_id":      "u2",
		"display_name": "kofi mensah",
	}), &initials)
	if initials.URL != "" || initials.Initials != "K" || initials.Source != portal.SourceInitials {
		t.Errorf("initials avatar = %+v", initials)
	}
}

func TestResolveAvatarBlankUser(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "resolve_avatar", map[string]interface{}{"user_id": " "})
	if !r.IsError {
		t.Error("expected validation error for blank user")
	}
}

func TestNotificationBadge(t *testing.T) {
	srv, f := testServer(t)
	f.SetStats("u1", models.NotificationStats{Total: 300, Unread: 120})

	var b portal.Badge
	decode(t, callTool(t, srv, "notification_badge", map[string]interface{}{"user_id": "u1"}), &b)
	if b.Text != "99+" || !b.Visible {
		t.Errorf("badge = %+v", b)
	}

	f.Fail(testutil.RouteStats, http.StatusInternalServerError)
	decode(t, callTool(t, srv, "notification_badge", map[string]interface{}{"user_id": "u1"}), &b)
	if b.Visible || b.Source != portal.SourceZero {
		t.Errorf("degraded badge = %+v", b)
	}
}

func TestNotificationBadgeTimeout(t *testing.T) {
	srv, f := testServer(t)
	release := f.Hold(testutil.RouteStats)
	defer release()

	r := callTool(t, srv, "notification_badge", map[string]interface{}{"user_id": "u1"})
	if !r.IsError || !strings.Contains(resultText(r), "retry") {
		t.Errorf("timeout result = %q (error=%v)", resultText(r), r.IsError)
	}
}

func TestListRegions(t *testing.T) {
	srv, f := testServer(t)
	f.SetRegions("ci", []models.Region{{ID: "ab", Name: "Abidjan", CountryID: "ci"}})

	var regions []models.Region
	decode(t, callTool(t, srv, "list_regions", map[string]interface{}{"country_id": "ci"}), &regions)
	if len(regions) != 1 || regions[0].Name != "Abidjan" {
		t.Errorf("regions = %+v", regions)
	}

	f.SetRegions("gh", nil)
	r := callTool(t, srv, "list_regions", map[string]interface{}{"country_id": "gh"})
	if resultText(r) != "no regions found" {
		t.Errorf("empty regions = %q", resultText(r))
	}
}

func TestGetDisplayRules(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_display_rules", map[string]interface{}{})
	if !strings.Contains(resultText(r), "99+") {
		t.Error("display rules should describe the badge cap")
	}
}
