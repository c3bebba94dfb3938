// Streaming-service [Provider] implementation.
//
// Search goes through a REST proxy wrapping the streaming service's music
// search. Audio retrieval goes through an async download sidecar: submit a
// job, poll its status, then stream the finished MP3. When no sidecar is
// configured, Fetch falls back to invoking a local yt-dlp binary.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

const streamSourceName = "stream"

// StreamProvider implements [Provider] against a search proxy and a download
// sidecar service.
type StreamProvider struct {
	searchURL   string
	downloadURL string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter

	// PollInterval and MaxPolls control sidecar job polling. Overridable in tests.
	PollInterval time.Duration
	MaxPolls     int

	// runCommand abstracts the yt-dlp fallback for tests.
	runCommand func(ctx context.Context, name string, args ...string) error
}

// StreamOpts configures a StreamProvider.
type StreamOpts struct {
	SearchURL   string
	DownloadURL string
	APIKey      string
	RateLimit   float64
	HTTPClient  *http.Client
}

// NewStreamProvider creates a streaming-service provider.
func NewStreamProvider(opts StreamOpts) *StreamProvider {
	if opts.SearchURL == "" {
		opts.SearchURL = "http://127.0.0.1:8080"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	p := &StreamProvider{
		searchURL:    strings.TrimRight(opts.SearchURL, "/"),
		downloadURL:  strings.TrimRight(opts.DownloadURL, "/"),
		apiKey:       opts.APIKey,
		httpClient:   opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		PollInterval: 5 * time.Second,
		MaxPolls:     60,
	}
	p.runCommand = func(ctx context.Context, name string, args ...string) error {
		return exec.CommandContext(ctx, name, args...).Run()
	}
	return p
}

func (p *StreamProvider) Name() string { return "Stream" }

func (p *StreamProvider) SupportsPreview() bool { return true }

// streamResult mirrors the proxy's search response entries.
type streamResult struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album *struct {
		Name string `json:"name"`
	} `json:"album"`
	Duration string `json:"duration"`
}

// Search queries the proxy for song matches.
func (p *StreamProvider) Search(ctx context.Context, query, artistHint string) ([]models.Candidate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := query
	if artistHint != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(artistHint)) {
		q = q + " " + artistHint
	}

	endpoint := fmt.Sprintf("%s/api/search?q=%s&filter=songs&limit=%d", p.searchURL, url.QueryEscape(q), TopN)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: search proxy returned status %d", shared.ErrSearchUnavailable, resp.StatusCode)
	}

	var results []streamResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: failed to decode search response: %v", shared.ErrSearchUnavailable, err)
	}

	candidates := make([]models.Candidate, 0, len(results))
	for _, r := range results {
		if len(candidates) == TopN {
			break
		}
		names := make([]string, 0, len(r.Artists))
		for _, a := range r.Artists {
			names = append(names, a.Name)
		}
		c := models.Candidate{
			ID:         r.VideoID,
			Title:      r.Title,
			Artist:     strings.Join(names, ", "),
			Duration:   r.Duration,
			Source:     streamSourceName,
			PreviewURL: fmt.Sprintf("https://www.youtube-nocookie.com/embed/%s?autoplay=1", r.VideoID),
		}
		if c.Artist == "" {
			c.Artist = "Unknown"
		}
		if r.Album != nil {
			c.Album = r.Album.Name
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// Fetch retrieves the candidate's audio as a 192kbps MP3.
func (p *StreamProvider) Fetch(ctx context.Context, candidate models.Candidate, outputDir string) (string, error) {
	if err := ensureDir(outputDir); err != nil {
		return "", err
	}
	if path, ok := cachedAudio(outputDir, candidate); ok {
		return path, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if p.downloadURL != "" {
		return p.fetchViaSidecar(ctx, candidate, outputDir)
	}
	return p.fetchViaBinary(ctx, candidate, outputDir)
}

// fetchViaSidecar submits a download job, polls it, and streams the file.
func (p *StreamProvider) fetchViaSidecar(ctx context.Context, candidate models.Candidate, outputDir string) (string, error) {
	videoURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", candidate.ID)
	payload, _ := json.Marshal(map[string]string{
		"url":           videoURL,
		"audio_format":  "bestaudio",
		"output_format": "mp3",
	})

	var submitResp struct {
		TaskID string `json:"task_id"`
	}
	if err := p.sidecarJSON(ctx, http.MethodPost, "/get_audio", payload, &submitResp); err != nil {
		return "", err
	}
	if submitResp.TaskID == "" {
		return "", fmt.Errorf("%w: sidecar returned no task id", shared.ErrFetchFailed)
	}

	remotePath, err := p.awaitTask(ctx, submitResp.TaskID)
	if err != nil {
		return "", err
	}

	dest := AudioPath(outputDir, candidate)
	if err := p.downloadFile(ctx, "/files/"+remotePath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// awaitTask polls the sidecar until the job completes or errors.
func (p *StreamProvider) awaitTask(ctx context.Context, taskID string) (string, error) {
	for i := 0; i < p.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.PollInterval):
		}

		var status struct {
			Status string `json:"status"`
			File   string `json:"file"`
			Error  string `json:"error"`
		}
		if err := p.sidecarJSON(ctx, http.MethodGet, "/status/"+taskID, nil, &status); err != nil {
			continue
		}

		switch status.Status {
		case "completed":
			if status.File == "" {
				return "", fmt.Errorf("%w: completed job has no file", shared.ErrFetchFailed)
			}
			return status.File, nil
		case "error":
			return "", fmt.Errorf("%w: sidecar job failed: %s", shared.ErrFetchFailed, status.Error)
		}
	}
	return "", fmt.Errorf("%w: download timed out", shared.ErrFetchFailed)
}

func (p *StreamProvider) sidecarJSON(ctx context.Context, method, path string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.downloadURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sidecar returned status %d", shared.ErrFetchFailed, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// downloadFile streams a sidecar file to dest.
func (p *StreamProvider) downloadFile(ctx context.Context, path, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.downloadURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: file retrieval returned status %d", shared.ErrFetchFailed, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}
	return nil
}

// fetchViaBinary shells out to yt-dlp when no sidecar is configured.
func (p *StreamProvider) fetchViaBinary(ctx context.Context, candidate models.Candidate, outputDir string) (string, error) {
	dest := AudioPath(outputDir, candidate)
	videoURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", candidate.ID)

	err := p.runCommand(ctx, "yt-dlp",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--quiet", "--no-warnings",
		"-o", strings.TrimSuffix(dest, ".mp3")+".%(ext)s",
		videoURL,
	)
	if err != nil {
		return "", fmt.Errorf("%w: yt-dlp: %v", shared.ErrFetchFailed, err)
	}

	if _, statErr := os.Stat(dest); statErr != nil {
		return "", fmt.Errorf("%w: yt-dlp produced no output file", shared.ErrFetchFailed)
	}
	return dest, nil
}
