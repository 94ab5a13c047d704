// package models defines the data model for the wdx discovery service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the discovery service.
// Implementations include PlaylistRecord and RunRecord.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Artist is a catalog artist. Identity is the service ID; instances are
// immutable once fetched.
type Artist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity,omitempty"`
}

// Release is an album or single owned by a single artist, with its tracks in
// catalog order. Tracks is populated only for releases that pass the recency
// window, so aggregation never touches the network.
type Release struct {
	ID       string      `json:"id"`
	ArtistID string      `json:"artist_id"`
	Title    string      `json:"title"`
	Date     ReleaseDate `json:"release_date"`
	Tracks   []Track     `json:"tracks,omitempty"`
}

// Track is a song. Two tracks with the same ID reached via different discovery
// paths are the same track.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ArtistIDs  []string `json:"artist_ids"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"duration_ms"`
	ReleaseID  string   `json:"release_id"`
}

// DiscoveredSet is the pipeline's working state for a single run. It is built
// stage by stage and discarded after publishing; it is never persisted.
type DiscoveredSet struct {
	Seeds   []Artist `json:"seeds"`
	Artists []Artist `json:"artists"` // seeds plus related, deduplicated, seeds first
	Tracks  []Track  `json:"tracks"`  // deduplicated by ID, discovery order
}

// PlaylistTarget identifies the playlist a run publishes into.
type PlaylistTarget struct {
	PlaylistID string `json:"playlist_id"`
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
}

// User is the authenticated catalog user a run operates on behalf of.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
