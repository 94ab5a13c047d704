// package services defines interfaces for interacting with music catalog HTTP APIs
package services

import (
	"context"

	"github.com/desertthunder/wdx/internal/models"
	"golang.org/x/oauth2"
)

// Catalog defines the read operations the discovery pipeline requires from a
// music catalog provider.
type Catalog interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*models.User, error)

	// FollowedArtists retrieves every artist the user follows, handling
	// pagination internally. Order is the catalog's returned order.
	FollowedArtists(ctx context.Context) ([]models.Artist, error)

	// RelatedArtists retrieves the "fans also like" artists for the given
	// artist, in the catalog's returned order.
	RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error)

	// ArtistReleases retrieves one page of the artist's releases, newest
	// first. The boolean reports whether more pages remain.
	ArtistReleases(ctx context.Context, artistID string, limit, offset int) ([]models.Release, bool, error)

	// ReleaseTracks retrieves the track listing for a release in catalog order.
	ReleaseTracks(ctx context.Context, releaseID string) ([]models.Track, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Publisher defines the playlist write operations the pipeline's publish
// stage requires.
type Publisher interface {
	// FindPlaylistByName locates the user's playlist with the exact name.
	// Returns shared.ErrPlaylistNotFound (wrapped) if absent.
	FindPlaylistByName(ctx context.Context, name string) (*models.PlaylistTarget, error)

	// CreatePlaylist creates a private playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, ownerID, name, description string) (*models.PlaylistTarget, error)

	// ReplaceTracks replaces the playlist's entire contents with the given
	// track URIs (at most 100).
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error

	// AppendTracks appends up to 100 track URIs to the playlist.
	AppendTracks(ctx context.Context, playlistID string, uris []string) error
}

// OAuthService extends service authentication for OAuth2 providers that use
// server-side authorization code flows.
type OAuthService interface {
	// GetAuthURL returns the provider's authorization URL for the state token.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying config for callback handling.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs a previously issued token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
