// Local media library [Provider] implementation.
//
// Talks to a self-hosted media server's music section. When the matched
// track is already an MP3 and its file is reachable on this machine's
// filesystem (shared mount), Fetch copies it directly; otherwise it streams
// the server's MP3 transcode.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

const librarySourceName = "library"

// LibraryProvider implements [Provider] against a local media server.
type LibraryProvider struct {
	baseURL    string
	token      string
	section    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// LibraryOpts configures a LibraryProvider.
type LibraryOpts struct {
	URL        string
	Token      string
	Section    string
	RateLimit  float64
	HTTPClient *http.Client
}

// NewLibraryProvider creates a media-library provider.
func NewLibraryProvider(opts LibraryOpts) (*LibraryProvider, error) {
	if opts.URL == "" || opts.Token == "" {
		return nil, fmt.Errorf("%w: library provider requires url and token", shared.ErrMissingCredentials)
	}
	if opts.Section == "" {
		opts.Section = "Music"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10.0
	}

	return &LibraryProvider{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		token:      opts.Token,
		section:    opts.Section,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}, nil
}

func (p *LibraryProvider) Name() string { return "Library" }

// SupportsPreview is false: the media server offers no embeddable preview.
func (p *LibraryProvider) SupportsPreview() bool { return false }

// libraryTrack mirrors the media server's track search entries.
type libraryTrack struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Duration  string `json:"duration"`
	File      string `json:"file"`
	Container string `json:"container"`
}

// Search queries the configured music section.
func (p *LibraryProvider) Search(ctx context.Context, query, artistHint string) ([]models.Candidate, error) {
	q := query
	if artistHint != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(artistHint)) {
		q = q + " " + artistHint
	}

	endpoint := fmt.Sprintf("%s/api/library/%s/search?q=%s&limit=%d",
		p.baseURL, url.PathEscape(p.section), url.QueryEscape(q), TopN)

	var tracks []libraryTrack
	if err := p.doJSON(ctx, endpoint, &tracks); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(tracks))
	for _, t := range tracks {
		if len(candidates) == TopN {
			break
		}
		c := models.Candidate{
			ID:       t.ID,
			Title:    t.Title,
			Artist:   t.Artist,
			Album:    t.Album,
			Duration: t.Duration,
			Source:   librarySourceName,
		}
		if c.Title == "" {
			c.Title = "Unknown"
		}
		if c.Artist == "" {
			c.Artist = "Unknown"
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// Fetch copies or transcodes the track into outputDir.
func (p *LibraryProvider) Fetch(ctx context.Context, candidate models.Candidate, outputDir string) (string, error) {
	if err := ensureDir(outputDir); err != nil {
		return "", err
	}
	if path, ok := cachedAudio(outputDir, candidate); ok {
		return path, nil
	}

	endpoint := fmt.Sprintf("%s/api/tracks/%s", p.baseURL, url.PathEscape(candidate.ID))
	var track libraryTrack
	if err := p.doJSON(ctx, endpoint, &track); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	dest := AudioPath(outputDir, candidate)

	// Direct copy when the server's storage is mounted locally and the
	// track needs no transcoding.
	if strings.EqualFold(track.Container, "mp3") && track.File != "" {
		if src, err := os.Open(track.File); err == nil {
			defer src.Close()
			if err := copyToFile(src, dest); err != nil {
				return "", err
			}
			return dest, nil
		}
	}

	streamURL := fmt.Sprintf("%s/api/tracks/%s/stream?format=mp3&bitrate=192", p.baseURL, url.PathEscape(candidate.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Library-Token", p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: stream returned status %d", shared.ErrFetchFailed, resp.StatusCode)
	}

	if err := copyToFile(resp.Body, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (p *LibraryProvider) doJSON(ctx context.Context, endpoint string, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Library-Token", p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: media server returned status %d", shared.ErrSearchUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrSearchUnavailable, err)
	}
	return nil
}

func copyToFile(src io.Reader, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	return nil
}
