package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/wdx/internal/services"
	"github.com/desertthunder/wdx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var catalog services.Catalog
	var publisher services.Publisher

	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			svc.Configure(config.Discovery.Market, config.Discovery.RateLimit, config.Discovery.RetryLimit)
			if token := config.Credentials.Spotify.Token(); token != nil {
				if err := svc.OAuthenticate(context.Background(), token); err != nil {
					logger.Debug("stored token rejected", "error", err)
				}
			}
			catalog = svc
			publisher = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Catalog:   catalog,
		Publisher: publisher,
		Logger:    logger,
	})

	app := &cli.Command{
		Name:     "wdx",
		Usage:    "Generate a weekly playlist of new releases from artists you follow",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
