package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/destinyjobs/portal/internal"
	"github.com/destinyjobs/portal/internal/resource"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg, err := internal.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("watch") {
		opts = append(opts, internal.WithConfigPath(cmd.String("config")))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	session := resource.Session{
		UserID:       cmd.String("user"),
		DisplayName:  cmd.String("name"),
		Username:     cmd.String("username"),
		SocialAvatar: resource.ParseReference(cmd.String("social-avatar")),
		MediaBaseURL: cmd.String("media-base-url"),
	}
	return internal.Resolve(ctx, os.Stdout, session, cmd.String("ref"), internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "portal",
		Usage:  "Resilient avatar, notification badge and profile resolution for the marketplace portal",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and SSE stream",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "watch",
						Usage:   "Reload upstream base URLs when the config file changes",
						Value:   true,
						Sources: cli.EnvVars("APP_CONFIG_WATCH"),
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the resolution tools over MCP on stdio",
				Action: mcp,
			},
			{
				Name:   "resolve",
				Usage:  "Resolve the avatar and badge of one user and print them as JSON",
				Action: resolve,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name used for initials"},
					&cli.StringFlag{Name: "username", Usage: "Username used when the name is empty"},
					&cli.StringFlag{Name: "social-avatar", Usage: "Social login avatar URL"},
					&cli.StringFlag{Name: "media-base-url", Usage: "Media host override"},
					&cli.StringFlag{Name: "ref", Usage: "Extra media reference to resolve"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
