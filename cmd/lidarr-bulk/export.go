package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sydlexius/lidarr-bulk/internal/backoff"
	"github.com/sydlexius/lidarr-bulk/internal/bulk"
	"github.com/sydlexius/lidarr-bulk/internal/config"
	"github.com/sydlexius/lidarr-bulk/internal/connection/spotify"
)

// exportSpotify writes the user's followed and saved-album artists to the
// artists file, ready for a resolve or bulk run. In dry-run mode it only
// prints the counts.
func exportSpotify(ctx context.Context, cfg *config.Config, stdout, prompt io.Writer, logger *slog.Logger) error {
	auth := spotify.NewAuthorizer(spotify.AuthConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURI:  cfg.Spotify.RedirectURI,
		TokenCache:   cfg.Spotify.TokenCachePath(),
		Timeout:      cfg.Spotify.Timeout,
	}, prompt, logger)

	hc, err := auth.Client(ctx)
	if err != nil {
		return fmt.Errorf("authorizing with spotify: %w", err)
	}

	client := spotify.New(cfg.Spotify.BaseURL, hc, backoff.Policy{
		Attempts:  cfg.Retry.Attempts,
		BaseDelay: cfg.Retry.BaseDelay,
		MaxDelay:  cfg.Retry.MaxDelay,
	}, logger)
	lib, err := client.Export(ctx)
	if err != nil {
		return err
	}
	if err := auth.SaveToken(); err != nil {
		logger.Warn("spotify token not cached", slog.String("error", err.Error()))
	}

	if cfg.Import.DryRun {
		fmt.Fprintf(stdout, "Found %d unique artists and %d unique albums\n", len(lib.Artists), len(lib.Albums))
		return nil
	}
	if err := bulk.WriteNamesFile(cfg.Import.ArtistsFile, lib.Artists); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d artists and %d albums to %s\n", len(lib.Artists), len(lib.Albums), cfg.Import.ArtistsFile)
	return nil
}
