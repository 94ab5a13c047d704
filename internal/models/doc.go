// Package models defines domain entities and persistence interfaces for the wdx discovery service.
//
// The package contains two categories of types:
//
// 1. Catalog entities: immutable snapshots of external service data
//   - [Artist] : identity and display data for a catalog artist
//   - [Release] : an album or single with its [ReleaseDate] and track listing
//   - [Track] : a song with its contributing artist IDs and playlist URI
//   - [DiscoveredSet] : the per-run working state of the discovery pipeline
//   - [PlaylistTarget] : the playlist a run publishes into
//
// 2. Persistent entities: database-backed records with full lifecycle management
//   - [PlaylistRecord] : one published playlist per owner and target date, used for replace-not-duplicate semantics
//   - [RunRecord] : history of discovery runs with counts and outcome
//
// Persistent entities implement the [Model] interface providing ID generation, timestamps, and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
