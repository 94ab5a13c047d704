// Package services defines the [Catalog] and [Publisher] interfaces the discovery pipeline consumes and implements them for Spotify.
//
// # Catalog Interface
//
// [Catalog] covers the read side: the authenticated user, their followed
// artists, the related-artist relation, and paginated per-artist releases with
// track listings. The pipeline in internal/tasks depends only on this
// abstraction, so tests drive it with in-memory fakes.
//
// # Publisher Interface
//
// [Publisher] covers the write side: locating, creating, and replacing the
// contents of the target playlist. Replace-then-append batching gives
// re-running a day's generation replace semantics instead of duplicate
// playlists.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Config.Client] transport refreshes expired access tokens using
// the refresh token. A 401 from the API surfaces [shared.ErrTokenExpired] to
// the caller for reauthorization; it is never retried blindly.
//
// # Rate Limiting And Retries
//
// All outbound requests flow through [Client], which shares one
// [rate.Limiter] across concurrent workers and retries transient failures
// (timeouts, 5xx, 429) up to a bounded budget, honoring Retry-After.
//
// # Error Handling
//
// Non-2xx responses become [*StatusError] values. StatusError unwraps to the
// shared sentinels so callers can test with errors.Is:
//   - [shared.ErrTokenExpired] : 401, reauthorization needed
//   - [shared.ErrRateLimited] : 429 with optional Retry-After
//   - [shared.ErrRetryExhausted] : transient failures beyond the retry budget
package services
