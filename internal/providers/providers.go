// package providers defines the audio source capability the pipeline is
// written against, with two implementations: a streaming-service backed
// provider (search proxy + download sidecar) and a local media library
// provider.
package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

// TopN bounds the candidate list returned by Search.
const TopN = 5

// Provider is the source capability contract.
//
// Search returns up to TopN candidates ranked most-relevant first; an empty
// slice (nil error) is the no-match signal. Fetch retrieves the candidate's
// audio as an MP3 under outputDir and returns the local path; the path is
// deterministic for a given candidate and collision-safe across candidates.
type Provider interface {
	// Name returns the human-readable provider name.
	Name() string

	// SupportsPreview reports whether candidates carry an in-browser preview reference.
	SupportsPreview() bool

	// Search finds candidates for the query. artistHint narrows the search when present.
	Search(ctx context.Context, query, artistHint string) ([]models.Candidate, error)

	// Fetch downloads the candidate's audio into outputDir and returns the file path.
	Fetch(ctx context.Context, candidate models.Candidate, outputDir string) (string, error)
}

// AudioPath returns the deterministic output path for a candidate's audio.
// The candidate id keeps distinct recordings of the same song from colliding.
func AudioPath(outputDir string, c models.Candidate) string {
	name := shared.SanitizeFilename(fmt.Sprintf("%s - %s [%s]", c.Artist, c.Title, c.ID))
	return filepath.Join(outputDir, name+".mp3")
}

// ensureDir creates outputDir when missing.
func ensureDir(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %v", shared.ErrFetchFailed, err)
	}
	return nil
}

// cachedAudio reports the existing audio path for the candidate, if any.
// Fetch reuses it so re-running the download phase is cheap.
func cachedAudio(outputDir string, c models.Candidate) (string, bool) {
	path := AudioPath(outputDir, c)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return "", false
}
