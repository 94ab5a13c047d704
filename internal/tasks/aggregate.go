package tasks

import "github.com/desertthunder/wdx/internal/models"

// Aggregate flattens a scan into a deduplicated track list.
//
// Tracks come out in scan order: artist by artist, each artist's releases in
// fetch order, each release's tracks in album order. A track appearing on
// multiple releases, or credited to multiple scanned artists, keeps only its
// first occurrence. Aggregating the same scan twice yields the same list.
func Aggregate(scan *ScanResult) []models.Track {
	var out []models.Track
	seen := make(map[string]bool)

	for _, artist := range scan.Artists {
		for _, release := range scan.Releases[artist.ID] {
			for _, track := range release.Tracks {
				if seen[track.ID] {
					continue
				}
				seen[track.ID] = true
				out = append(out, track)
			}
		}
	}
	return out
}
