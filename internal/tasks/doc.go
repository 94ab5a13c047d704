// Package tasks implements the discovery pipeline that turns a user's followed artists into a weekly playlist.
//
// The core abstraction is [DiscoveryEngine], which orchestrates the four
// stages in order:
//
//  1. Expand : breadth-first traversal of the related-artist graph from the
//     followed (seed) set, bounded per artist and in total
//  2. Scan : per-artist release fetch filtered to the recency window, with
//     track listings attached to passing releases
//  3. Aggregate : pure flatten-and-dedup into one deterministic track list
//  4. Publish : create or replace the day's playlist on the catalog service
//
// Each stage consumes the previous stage's output as an immutable value. The
// expand and scan stages fan out per-artist fetches over a bounded worker
// pool; results are collected by index and merged sequentially so output
// order is deterministic regardless of scheduling.
//
// Per-artist fetch failures are contained at the artist boundary: they are
// logged, recorded as [ArtistFailure], and excluded from results without
// aborting the run. The exceptions are credential expiry and context
// cancellation, which abort immediately. A run that produced tracks despite
// skipped artists is a partial success; a run with no discoverable artists or
// no tracks in window fails with a reason sentinel the CLI can render
// specifically.
//
// Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks
