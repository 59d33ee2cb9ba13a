// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes portal resolution tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/resource"
)

const displayRulesURI = "portal://display-rules"

// Server wraps the MCP server with portal tools.
type Server struct {
	mcp *server.MCPServer
	svc *portal.Service
}

// New creates a new MCP server with all portal tools registered.
func New(svc *portal.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Portal",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_url",
		mcp.WithDescription("Turn a media reference from the marketplace API (absolute URL or "+
			"media-relative path) into a displayable URL."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Raw media field, e.g. /media/avatars/a.png")),
		mcp.WithString("media_base_url", mcp.Description("Media host override (defaults to the configured one)")),
	), s.resolveURL)

	s.mcp.AddTool(mcp.NewTool("resolve_avatar",
		mcp.WithDescription("Resolve the avatar of a user through the full fallback chain. "+
			"Always answers: initials when no image is available."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Marketplace user id")),
		mcp.WithString("display_name", mcp.Description("Name used for initials")),
		mcp.WithString("username", mcp.Description("Fallback for initials")),
		mcp.WithString("social_avatar", mcp.Description("Social login avatar URL, if known")),
	), s.resolveAvatar)

	s.mcp.AddTool(mcp.NewTool("notification_badge",
		mcp.WithDescription("Fetch the unread notification badge of a user. "+
			"Read the display rules via the portal://display-rules resource to interpret it."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Marketplace user id")),
	), s.notificationBadge)

	s.mcp.AddTool(mcp.NewTool("list_regions",
		mcp.WithDescription("List the regions of a country."),
		mcp.WithString("country_id", mcp.Required(), mcp.Description("Country id")),
	), s.listRegions)

	s.mcp.AddTool(mcp.NewTool("get_display_rules",
		mcp.WithDescription("Returns the rules used to resolve media and render badges."),
	), s.getDisplayRules)

	s.mcp.AddResource(
		mcp.NewResource(displayRulesURI, "Display Rules",
			mcp.WithResourceDescription("How media references, avatars and badges are resolved."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDisplayRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type resolvedURL struct {
	Reference string `json:"reference"`
	URL       string `json:"url,omitempty"`
	Display   bool   `json:"display"`
}

func (s *Server) resolveURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, media := s.svc.BaseURLs()
	media = req.GetString("media_base_url", media)

	ref := resource.ParseReference(raw)
	url, ok := resource.Resolve(ref, media, nil)
	return jsonResult(resolvedURL{Reference: resource.String(ref), URL: url, Display: ok})
}

func (s *Server) resolveAvatar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	av, err := s.svc.ResolveAvatar(ctx, resource.Session{
		UserID:       userID,
		DisplayName:  req.GetString("display_name", ""),
		Username:     req.GetString("username", ""),
		SocialAvatar: resource.ParseReference(req.GetString("social_avatar", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(av)
}

func (s *Server) notificationBadge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := s.svc.NotificationBadge(ctx, resource.Session{UserID: userID})
	if err != nil {
		if b.Class == resource.ClassTimeout.String() {
			return mcp.NewToolResultError("notification stats timed out; call notification_badge again to retry"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b)
}

func (s *Server) listRegions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	countryID, err := req.RequireString("country_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	regions, err := s.svc.Regions(ctx, countryID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list regions: %v", err)), nil
	}
	if len(regions) == 0 {
		return mcp.NewToolResultText("no regions found"), nil
	}
	return jsonResult(regions)
}

func (s *Server) getDisplayRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DisplayRules), nil
}

func (s *Server) readDisplayRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      displayRulesURI,
			MIMEType: "text/markdown",
			Text:     DisplayRules,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
