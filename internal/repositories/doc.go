// Package repositories implements SQLite persistence for discovery run bookkeeping.
//
// Two entities are persisted: published playlists and run history. Playlists
// are unique per owner and target date, which is what makes repeated
// generations for the same day update one playlist instead of creating
// duplicates.
//
// Key Implementations:
//   - [PlaylistRepository] : Published playlist records with owner/date lookups
//   - [RunRepository] : Run history with status and per-stage counts
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42)
// independent of UUIDs and creation timestamps. The [NextSequence] function
// atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
