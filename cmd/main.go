package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/services"
	"github.com/desertthunder/multify/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadDotEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	config := shared.DefaultConfig()
	configPath := os.Getenv("MULTIFY_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := config.ApplyEnv(); err != nil {
		logger.Fatal("invalid environment", "error", err)
	}

	var spotifyService Catalog
	if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
		spotifyService = svc
	} else {
		logger.Debug("spotify credentials not configured", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotifyService,
		Backend: services.NewCallableClient(backendURL(config), nil),
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "multify",
		Usage:    "Collaborative party playlists backed by Spotify",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// backendURL is the base URL of the API the client commands talk to.
func backendURL(config *shared.Config) string {
	if url := os.Getenv("MULTIFY_BACKEND_URL"); url != "" {
		return url
	}
	return "http://" + config.Server.Addr()
}
