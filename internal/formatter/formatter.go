// package formatter renders run results to various formats (text, CSV, JSON manifest)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"mixcard/internal/cardapi"
	"mixcard/internal/models"
	"mixcard/internal/shared"
)

// ExportToText renders the playlist as the numbered list shown before
// download starts.
func ExportToText(pl *models.Playlist) []byte {
	var buf bytes.Buffer

	name := pl.Name
	if name == "" {
		name = "Playlist"
	}
	buf.WriteString(fmt.Sprintf("%s (%d songs)\n\n", name, len(pl.Items)))

	for _, item := range pl.Items {
		line := item.Request.Raw
		if item.Selected != nil {
			line = item.Selected.Label()
		}
		buf.WriteString(fmt.Sprintf("%2d. %s\n", item.Ordinal, line))
	}

	return buf.Bytes()
}

// ExportToCSV renders per-song outcomes with columns: Ordinal, Requested,
// Matched, State, File.
func ExportToCSV(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Ordinal", "Requested", "Matched", "State", "File"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range pl.Items {
		matched := ""
		if item.Selected != nil {
			matched = item.Selected.Label()
		}
		record := []string{
			fmt.Sprintf("%d", item.Ordinal),
			item.Request.Raw,
			matched,
			string(item.State),
			item.FilePath,
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

// manifestSong is one per-song entry in the run manifest.
type manifestSong struct {
	Ordinal   int    `json:"ordinal"`
	Requested string `json:"requested"`
	Matched   string `json:"matched,omitempty"`
	State     string `json:"state"`
	File      string `json:"file,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunManifest summarizes a completed run for machine consumption.
type RunManifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	CardName    string         `json:"card_name,omitempty"`
	CardID      string         `json:"card_id,omitempty"`
	TotalSongs  int            `json:"total_songs"`
	Fetched     int            `json:"fetched"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Uploaded    int            `json:"uploaded"`
	Excluded    int            `json:"excluded"`
	Songs       []manifestSong `json:"songs"`
}

// NewRunManifest builds the manifest from a playlist and an optional publish
// result.
func NewRunManifest(pl *models.Playlist, result *cardapi.PublishResult) RunManifest {
	manifest := RunManifest{
		GeneratedAt: time.Now().UTC(),
		CardName:    pl.Name,
		TotalSongs:  len(pl.Items),
	}

	for _, item := range pl.Items {
		song := manifestSong{
			Ordinal:   item.Ordinal,
			Requested: item.Request.Raw,
			State:     string(item.State),
			File:      item.FilePath,
			Error:     item.ErrorDetail,
		}
		if item.Selected != nil {
			song.Matched = item.Selected.Label()
		}
		switch item.State {
		case models.StateFetched:
			manifest.Fetched++
		case models.StateSkipped:
			manifest.Skipped++
		case models.StateFailed:
			manifest.Failed++
		}
		manifest.Songs = append(manifest.Songs, song)
	}

	if result != nil {
		manifest.CardID = result.CardID
		manifest.Uploaded = len(result.Uploaded)
		manifest.Excluded = len(result.Excluded)
	}

	return manifest
}

// ToManifestJSON generates the pretty-printed JSON manifest.
func ToManifestJSON(pl *models.Playlist, result *cardapi.PublishResult) ([]byte, error) {
	return shared.MarshalJSON(NewRunManifest(pl, result), true)
}

// WriteRunManifest writes the run manifest next to the downloaded audio.
//
// Defaults to manifest.json in the current directory.
func WriteRunManifest(pl *models.Playlist, result *cardapi.PublishResult, path string) (string, error) {
	if path == "" {
		path = "manifest.json"
	}

	data, err := ToManifestJSON(pl, result)
	if err != nil {
		return "", fmt.Errorf("failed to generate manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return path, nil
}
