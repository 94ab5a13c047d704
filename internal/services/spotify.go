// Spotify API implementation of [Catalog] and [Publisher]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify caps playlist track mutations at 100 URIs per request.
	MaxTracksPerRequest = 100
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	URI        string   `json:"uri"`
}

// SpotifyAlbum represents a Spotify album or single.
type SpotifyAlbum struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AlbumType            string          `json:"album_type"`
	Artists              []SpotifyArtist `json:"artists"`
	ReleaseDate          string          `json:"release_date"`
	ReleaseDatePrecision string          `json:"release_date_precision"`
	TotalTracks          int             `json:"total_tracks"`
	URI                  string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	URI        string          `json:"uri"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type playlistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Owner        playlistOwner `json:"owner"`
	Public       bool          `json:"public"`
	ExternalURLs externalURLs  `json:"external_urls"`
	URI          string        `json:"uri"`
}

// spotifyFollowedArtists is the cursor-paginated /me/following payload.
type spotifyFollowedArtists struct {
	Artists struct {
		Items   []SpotifyArtist `json:"items"`
		Next    *string         `json:"next"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Total int `json:"total"`
	} `json:"artists"`
}

// spotifyPaginatedAlbums is the offset-paginated /artists/{id}/albums payload.
type spotifyPaginatedAlbums struct {
	Items  []SpotifyAlbum `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

// spotifyPaginatedTracks is the offset-paginated /albums/{id}/tracks payload.
type spotifyPaginatedTracks struct {
	Items  []SpotifyTrack `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

// spotifyPaginatedPlaylists is the offset-paginated /me/playlists payload.
type spotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyService implements [Catalog] and [Publisher] for Spotify API interactions.
// Uses [oauth2] for authentication and [Client] for rate-limited requests.
type SpotifyService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	client      *Client
	credentials map[string]string
	market      string
}

var (
	_ Catalog      = (*SpotifyService)(nil)
	_ Publisher    = (*SpotifyService)(nil)
	_ OAuthService = (*SpotifyService)(nil)
)

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-follow-read",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		client:      NewClient(nil, defaultRateLimit, defaultRetryLimit),
		credentials: credentials,
		market:      "US",
	}, nil
}

// Configure applies pipeline tunables: market code, rate limit, and retry budget.
func (s *SpotifyService) Configure(market string, rps float64, retries int) {
	if market != "" {
		s.market = market
	}
	s.client = NewClient(s.client.http, rps, retries)
	if s.token != nil {
		s.client.SetHTTPClient(s.config.Client(context.Background(), s.token))
	}
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{AccessToken: accessToken})
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("missing access_token or auth_code in credentials")
}

// OAuthenticate installs a previously issued token. The oauth2 transport
// refreshes it automatically when a refresh token is present.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: no token", shared.ErrNotAuthenticated)
	}
	s.token = token
	s.client.SetHTTPClient(s.config.Client(ctx, token))
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated, rate-limited request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := spotifyBaseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// The oauth2 transport installed by OAuthenticate owns the Authorization
	// header so refreshed tokens are never shadowed by a stale copy here.
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &models.User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// FollowedArtists retrieves every artist the user follows via cursor pagination.
func (s *SpotifyService) FollowedArtists(ctx context.Context) ([]models.Artist, error) {
	var artists []models.Artist
	after := ""

	for {
		endpoint := "/me/following?type=artist&limit=50"
		if after != "" {
			endpoint += "&after=" + url.QueryEscape(after)
		}

		var page spotifyFollowedArtists
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, a := range page.Artists.Items {
			artists = append(artists, toArtist(a))
		}

		if page.Artists.Next == nil || page.Artists.Cursors.After == "" {
			break
		}
		after = page.Artists.Cursors.After
	}

	return artists, nil
}

// RelatedArtists retrieves the "fans also like" artists for an artist.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	endpoint := fmt.Sprintf("/artists/%s/related-artists", artistID)

	var response struct {
		Artists []SpotifyArtist `json:"artists"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(response.Artists))
	for _, a := range response.Artists {
		artists = append(artists, toArtist(a))
	}
	return artists, nil
}

// ArtistReleases retrieves one page of an artist's albums and singles, newest first.
func (s *SpotifyService) ArtistReleases(ctx context.Context, artistID string, limit, offset int) ([]models.Release, bool, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album,single&market=%s&limit=%d&offset=%d",
		artistID, url.QueryEscape(s.market), limit, offset)

	var page spotifyPaginatedAlbums
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, false, err
	}

	releases := make([]models.Release, 0, len(page.Items))
	for _, album := range page.Items {
		release, err := toRelease(album, artistID)
		if err != nil {
			// Releases with unparseable dates can't pass a window test.
			continue
		}
		releases = append(releases, release)
	}

	return releases, page.Next != nil, nil
}

// ReleaseTracks retrieves the full track listing for a release.
func (s *SpotifyService) ReleaseTracks(ctx context.Context, releaseID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=50&offset=%d", releaseID, offset)

		var page spotifyPaginatedTracks
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, t := range page.Items {
			tracks = append(tracks, toTrack(t, releaseID))
		}

		if page.Next == nil {
			break
		}
		offset += len(page.Items)
	}

	return tracks, nil
}

// FindPlaylistByName locates the authenticated user's playlist with the exact name.
func (s *SpotifyService) FindPlaylistByName(ctx context.Context, name string) (*models.PlaylistTarget, error) {
	limit := 50
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

		var page spotifyPaginatedPlaylists
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, pl := range page.Items {
			if pl.Name == name {
				return &models.PlaylistTarget{
					PlaylistID: pl.ID,
					OwnerID:    pl.Owner.ID,
					Name:       pl.Name,
					URL:        pl.ExternalURLs.Spotify,
				}, nil
			}
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return nil, fmt.Errorf("%w: no playlist named %q", shared.ErrPlaylistNotFound, name)
}

// CreatePlaylist creates a private playlist for the owner.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, ownerID, name, description string) (*models.PlaylistTarget, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var created SpotifySimplePlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &models.PlaylistTarget{
		PlaylistID: created.ID,
		OwnerID:    ownerID,
		Name:       created.Name,
		URL:        created.ExternalURLs.Spotify,
	}, nil
}

// ReplaceTracks replaces the playlist's contents with the given URIs.
func (s *SpotifyService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxTracksPerRequest {
		return fmt.Errorf("%w: at most %d URIs per replace", shared.ErrInvalidInput, MaxTracksPerRequest)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	body := map[string]any{"uris": uris}
	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

// AppendTracks appends URIs to the playlist.
func (s *SpotifyService) AppendTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxTracksPerRequest {
		return fmt.Errorf("%w: at most %d URIs per append", shared.ErrInvalidInput, MaxTracksPerRequest)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	body := map[string]any{"uris": uris}
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

func toArtist(a SpotifyArtist) models.Artist {
	return models.Artist{ID: a.ID, Name: a.Name, Popularity: a.Popularity}
}

func toRelease(album SpotifyAlbum, artistID string) (models.Release, error) {
	date, err := models.ParseReleaseDate(album.ReleaseDate)
	if err != nil {
		return models.Release{}, err
	}

	return models.Release{
		ID:       album.ID,
		ArtistID: artistID,
		Title:    album.Name,
		Date:     date,
	}, nil
}

func toTrack(t SpotifyTrack, releaseID string) models.Track {
	artistIDs := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artistIDs = append(artistIDs, a.ID)
	}

	return models.Track{
		ID:         t.ID,
		Title:      t.Name,
		ArtistIDs:  artistIDs,
		URI:        t.URI,
		DurationMS: t.DurationMS,
		ReleaseID:  releaseID,
	}
}
