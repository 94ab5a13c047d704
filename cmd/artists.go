package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/wdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Artists lists the artists the authenticated user follows.
func (r *Runner) Artists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Info("listing followed artists")

	artists, err := r.catalog.FollowedArtists(ctx)
	if err != nil {
		if reauthed, authErr := r.handleSpotifyAuthError(ctx, err, cmd); reauthed {
			if authErr != nil {
				return authErr
			}
			if artists, err = r.catalog.FollowedArtists(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if limit > 0 && limit < len(artists) {
		artists = artists[:limit]
	}

	if useJSON {
		return r.writeJSON(artists, pretty)
	}

	r.writePlain("Following %d artists:\n\n", len(artists))
	for i, artist := range artists {
		r.writePlain("%d. %s\n", i+1, artist.Name)
		r.writePlain("   ID: %s\n", artist.ID)
		if artist.Popularity > 0 {
			r.writePlain("   Popularity: %d\n", artist.Popularity)
		}
	}

	return nil
}
