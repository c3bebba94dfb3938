package formatter

import (
	"path/filepath"
	"strings"
	"testing"

	"mixcard/internal/cardapi"
	"mixcard/internal/models"
	th "mixcard/internal/testing"
)

func samplePlaylist() *models.Playlist {
	yesterday := models.Candidate{ID: "v1", Title: "Yesterday", Artist: "The Beatles", Source: "stream"}
	return &models.Playlist{
		Name: "Road Trip",
		Items: []*models.SongItem{
			{
				Request:  models.NewSongRequest("Yesterday - The Beatles"),
				Ordinal:  1,
				State:    models.StateFetched,
				Selected: &yesterday,
				FilePath: "out/The Beatles - Yesterday [v1].mp3",
			},
			{
				Request: models.NewSongRequest("Imagine - John Lennon"),
				Ordinal: 2,
				State:   models.StateSkipped,
			},
			{
				Request:     models.NewSongRequest("Hey Jude"),
				Ordinal:     3,
				State:       models.StateFailed,
				ErrorDetail: "search failed: 502",
			},
		},
	}
}

func TestExportToText(t *testing.T) {
	output := string(ExportToText(samplePlaylist()))

	if !strings.Contains(output, "Road Trip (3 songs)") {
		t.Errorf("text missing header, got: %s", output)
	}
	if !strings.Contains(output, " 1. The Beatles - Yesterday") {
		t.Errorf("text should show the matched label for confirmed songs, got: %s", output)
	}
	if !strings.Contains(output, " 3. Hey Jude") {
		t.Errorf("text should fall back to the raw request, got: %s", output)
	}
}

func TestExportToCSV(t *testing.T) {
	data, err := ExportToCSV(samplePlaylist())
	if err != nil {
		t.Fatalf("ExportToCSV failed: %v", err)
	}

	output := string(data)
	if !strings.Contains(output, "Ordinal,Requested,Matched,State,File") {
		t.Errorf("CSV missing headers, got: %s", output)
	}
	if !strings.Contains(output, "1,Yesterday - The Beatles,The Beatles - Yesterday,fetched,") {
		t.Errorf("CSV missing fetched row, got: %s", output)
	}
	if !strings.Contains(output, "2,Imagine - John Lennon,,skipped,") {
		t.Errorf("CSV missing skipped row, got: %s", output)
	}
}

func TestNewRunManifest(t *testing.T) {
	result := &cardapi.PublishResult{
		CardID:   "card-1",
		Uploaded: []cardapi.TrackRef{{Title: "The Beatles - Yesterday"}},
		Excluded: []cardapi.ExcludedTrack{},
	}

	manifest := NewRunManifest(samplePlaylist(), result)

	if manifest.TotalSongs != 3 || manifest.Fetched != 1 || manifest.Skipped != 1 || manifest.Failed != 1 {
		t.Errorf("counts = %d/%d/%d/%d", manifest.TotalSongs, manifest.Fetched, manifest.Skipped, manifest.Failed)
	}
	if manifest.CardID != "card-1" || manifest.Uploaded != 1 {
		t.Errorf("publish summary = %s/%d", manifest.CardID, manifest.Uploaded)
	}
	if manifest.Songs[2].Error != "search failed: 502" {
		t.Errorf("failed song missing error detail: %+v", manifest.Songs[2])
	}
}

func TestWriteRunManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	written, err := WriteRunManifest(samplePlaylist(), nil, path)
	if err != nil {
		t.Fatalf("WriteRunManifest failed: %v", err)
	}
	if written != path {
		t.Errorf("path = %s, want %s", written, path)
	}

	th.AssertFileExists(t, path)

	content := th.MustReadFile(t, path)
	if !strings.Contains(content, `"card_name": "Road Trip"`) {
		t.Errorf("manifest missing card name: %s", content)
	}
	if !strings.Contains(content, `"total_songs": 3`) {
		t.Errorf("manifest missing totals: %s", content)
	}
	if strings.Contains(content, `"card_id"`) {
		t.Errorf("manifest should omit card id without a publish result: %s", content)
	}
}

func TestWriteRunManifestDefaultPath(t *testing.T) {
	originalDir := th.MustGetwd(t)
	th.MustChdir(t, t.TempDir())
	defer th.MustChdir(t, originalDir)

	written, err := WriteRunManifest(samplePlaylist(), nil, "")
	if err != nil {
		t.Fatalf("WriteRunManifest failed: %v", err)
	}
	if written != "manifest.json" {
		t.Errorf("default path = %s", written)
	}
	th.AssertFileExists(t, written)
}
