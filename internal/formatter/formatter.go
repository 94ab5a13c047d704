// package formatter provides functions to export discovery results to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/shared"
)

// DiscoveryExport bundles a discovery run's output for export.
type DiscoveryExport struct {
	PlaylistName string               `json:"playlist_name"`
	GeneratedOn  string               `json:"generated_on"`
	Set          models.DiscoveredSet `json:"set"`
}

// ExportToCSV converts a DiscoveryExport's tracks to CSV with columns: ID, Title, Artists, URI, Duration, Release
func ExportToCSV(export *DiscoveryExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artists", "URI", "Duration", "Release"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Set.Tracks {
		record := []string{
			track.ID,
			track.Title,
			strings.Join(track.ArtistIDs, ";"),
			track.URI,
			strconv.Itoa(track.DurationMS),
			track.ReleaseID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a DiscoveryExport to Markdown format
func ExportToMarkdown(export *DiscoveryExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.PlaylistName))
	if export.GeneratedOn != "" {
		buf.WriteString(fmt.Sprintf("**Generated**: %s\n", export.GeneratedOn))
	}
	buf.WriteString(fmt.Sprintf("**Seeds**: %d\n", len(export.Set.Seeds)))
	buf.WriteString(fmt.Sprintf("**Artists**: %d\n", len(export.Set.Artists)))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(export.Set.Tracks)))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Set.Tracks {
		duration := shared.FormatDuration(track.DurationMS)
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, track.Title, duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a DiscoveryExport to plain text format
func ExportToText(export *DiscoveryExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", export.PlaylistName))
	if export.GeneratedOn != "" {
		buf.WriteString(fmt.Sprintf("Generated: %s\n", export.GeneratedOn))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(export.Set.Tracks)))

	for i, track := range export.Set.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, track.Title))
	}

	return buf.Bytes(), nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a discovery run to CSV with an accompanying metadata JSON file.
//
// Defaults to the playlist name as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *DiscoveryExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = strings.ReplaceAll(export.PlaylistName, " ", "_")
	}

	if dir := filepath.Dir(baseFilepath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write tracks file: %w", err)
	}

	metadata := struct {
		PlaylistName string `json:"playlist_name"`
		GeneratedOn  string `json:"generated_on"`
		SeedCount    int    `json:"seed_count"`
		ArtistCount  int    `json:"artist_count"`
		TrackCount   int    `json:"track_count"`
	}{
		PlaylistName: export.PlaylistName,
		GeneratedOn:  export.GeneratedOn,
		SeedCount:    len(export.Set.Seeds),
		ArtistCount:  len(export.Set.Artists),
		TrackCount:   len(export.Set.Tracks),
	}

	jsonData, err := shared.MarshalJSON(metadata, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}
