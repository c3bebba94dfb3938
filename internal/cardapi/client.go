// package cardapi implements the client for the card platform's developer
// API: audio upload with server-side transcoding, display icon management,
// and card content creation.
package cardapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"mixcard/internal/shared"
)

// TokenSource supplies a valid bearer token for API calls, refreshing it
// when necessary.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the card platform API.
type Client struct {
	apiURL     string
	tokens     TokenSource
	httpClient *http.Client

	// PollInterval and MaxPolls control transcode polling. Overridable in tests.
	PollInterval time.Duration
	MaxPolls     int
}

// NewClient creates an API client. tokens must be non-nil.
func NewClient(apiURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if apiURL == "" {
		apiURL = "https://api.yotoplay.com"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiURL:       apiURL,
		tokens:       tokens,
		httpClient:   httpClient,
		PollInterval: 2 * time.Second,
		MaxPolls:     300,
	}
}

// TrackRef describes one transcoded track ready for card assembly.
type TrackRef struct {
	Title            string `json:"title"`
	TranscodedSHA256 string `json:"transcodedSha256"`
	Duration         int    `json:"duration"`
	FileSize         int64  `json:"fileSize"`
	Channels         string `json:"channels"`
	Format           string `json:"format"`
}

// Icon is an entry in the platform's shared display icon catalog.
type Icon struct {
	MediaID    string   `json:"mediaId"`
	Title      string   `json:"title"`
	PublicTags []string `json:"publicTags"`
	URL        string   `json:"url"`
}

// Card is the remote card identity plus summary metadata.
type Card struct {
	CardID  string `json:"cardId"`
	Title   string `json:"title"`
	Content struct {
		Chapters []Chapter `json:"chapters"`
	} `json:"content,omitempty"`
}

// Chapter is one entry on the card: a single track with its ordinal overlay
// label and optional 16x16 display icon.
type Chapter struct {
	Key          string          `json:"key"`
	Title        string          `json:"title"`
	OverlayLabel string          `json:"overlayLabel"`
	Tracks       []ChapterTrack  `json:"tracks"`
	Display      *ChapterDisplay `json:"display,omitempty"`
}

// ChapterTrack is the audio reference inside a chapter.
type ChapterTrack struct {
	Key          string `json:"key"`
	Title        string `json:"title"`
	TrackURL     string `json:"trackUrl"`
	Duration     int    `json:"duration"`
	FileSize     int64  `json:"fileSize"`
	Channels     string `json:"channels"`
	Format       string `json:"format"`
	Type         string `json:"type"`
	OverlayLabel string `json:"overlayLabel"`
}

// ChapterDisplay holds the chapter's 16x16 icon reference.
type ChapterDisplay struct {
	Icon16x16 string `json:"icon16x16"`
}

func (c *Client) authHeader(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// doJSON performs an authenticated request and decodes the JSON response.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, result any) error {
	auth, err := c.authHeader(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode, raw)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// sha256File computes the hex digest of the file at path.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// contentTypeFor maps an audio file extension to its MIME type.
func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".opus":
		return "audio/opus"
	default:
		return "audio/mpeg"
	}
}

// UploadTrack uploads the audio file and waits for server-side transcoding,
// returning the transcoded track reference. Files the platform already holds
// (matched by content hash) skip the byte transfer.
func (c *Client) UploadTrack(ctx context.Context, filePath, title string) (*TrackRef, error) {
	sum, err := sha256File(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}

	var uploadResp struct {
		Upload struct {
			UploadID  string `json:"uploadId"`
			UploadURL string `json:"uploadUrl"`
		} `json:"upload"`
	}
	path := "/media/transcode/audio/uploadUrl?sha256=" + url.QueryEscape(sum)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &uploadResp); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	if uploadResp.Upload.UploadID == "" {
		return nil, fmt.Errorf("%w: no upload id returned", shared.ErrUploadFailed)
	}

	// An empty uploadUrl means the platform already has this file.
	if uploadResp.Upload.UploadURL != "" {
		if err := c.putFile(ctx, uploadResp.Upload.UploadURL, filePath); err != nil {
			return nil, err
		}
	}

	ref, err := c.awaitTranscode(ctx, uploadResp.Upload.UploadID)
	if err != nil {
		return nil, err
	}
	ref.Title = title
	return ref, nil
}

// putFile streams the audio bytes to the signed upload URL.
func (c *Client) putFile(ctx context.Context, uploadURL, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(filePath))
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filePath)))
	if info, statErr := f.Stat(); statErr == nil {
		req.ContentLength = info.Size()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upload returned status %d", shared.ErrUploadFailed, resp.StatusCode)
	}
	return nil
}

// awaitTranscode polls the upload until the transcoded hash appears.
func (c *Client) awaitTranscode(ctx context.Context, uploadID string) (*TrackRef, error) {
	path := fmt.Sprintf("/media/upload/%s/transcoded?loudnorm=false", url.PathEscape(uploadID))

	for i := 0; i < c.MaxPolls; i++ {
		var status struct {
			Transcode struct {
				TranscodedSHA256 string `json:"transcodedSha256"`
				TranscodedInfo   struct {
					Duration int    `json:"duration"`
					FileSize int64  `json:"fileSize"`
					Channels string `json:"channels"`
					Format   string `json:"format"`
				} `json:"transcodedInfo"`
			} `json:"transcode"`
		}
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &status); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
		}

		if status.Transcode.TranscodedSHA256 != "" {
			info := status.Transcode.TranscodedInfo
			ref := &TrackRef{
				TranscodedSHA256: status.Transcode.TranscodedSHA256,
				Duration:         info.Duration,
				FileSize:         info.FileSize,
				Channels:         info.Channels,
				Format:           info.Format,
			}
			if ref.Channels == "" {
				ref.Channels = "stereo"
			}
			if ref.Format == "" {
				ref.Format = "aac"
			}
			return ref, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}

	return nil, fmt.Errorf("%w: transcoding timed out", shared.ErrUploadFailed)
}

// CreateCard assembles a card from transcoded tracks. Each track becomes one
// chapter keyed and overlay-labelled by its 1-based position; iconMediaID,
// when set, is attached to every chapter as the 16x16 display icon.
func (c *Client) CreateCard(ctx context.Context, name string, refs []TrackRef, iconMediaID string) (*Card, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: card needs at least one track", shared.ErrInvalidInput)
	}

	iconRef := ""
	if iconMediaID != "" {
		iconRef = "yoto:#" + iconMediaID
	}

	chapters := make([]Chapter, len(refs))
	totalDuration := 0
	var totalSize int64
	for i, ref := range refs {
		label := fmt.Sprintf("%d", i+1)
		chapters[i] = Chapter{
			Key:          fmt.Sprintf("%02d", i+1),
			Title:        ref.Title,
			OverlayLabel: label,
			Tracks: []ChapterTrack{{
				Key:          "01",
				Title:        ref.Title,
				TrackURL:     "yoto:#" + ref.TranscodedSHA256,
				Duration:     ref.Duration,
				FileSize:     ref.FileSize,
				Channels:     ref.Channels,
				Format:       ref.Format,
				Type:         "audio",
				OverlayLabel: label,
			}},
		}
		if iconRef != "" {
			chapters[i].Display = &ChapterDisplay{Icon16x16: iconRef}
		}
		totalDuration += ref.Duration
		totalSize += ref.FileSize
	}

	payload := map[string]any{
		"title": name,
		"content": map[string]any{
			"chapters": chapters,
			"config": map[string]any{
				"resumeTimeout": 0,
				"playbackType":  "default",
			},
		},
		"metadata": map[string]any{
			"description": fmt.Sprintf("%d tracks", len(refs)),
			"media": map[string]any{
				"duration": totalDuration,
				"fileSize": totalSize,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal card payload: %w", err)
	}

	var created struct {
		Card Card `json:"card"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/content", body, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	if created.Card.CardID == "" {
		return nil, fmt.Errorf("%w: no card id returned", shared.ErrUploadFailed)
	}
	return &created.Card, nil
}

// ListCards returns the account's existing cards.
func (c *Client) ListCards(ctx context.Context) ([]Card, error) {
	var resp struct {
		Cards []Card `json:"cards"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/content?type=myo", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cards, nil
}

// GetCard fetches full card details including chapters.
func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	var resp struct {
		Card Card `json:"card"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/content/"+url.PathEscape(cardID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Card, nil
}

// PublicIcons fetches the platform's shared display icon catalog.
func (c *Client) PublicIcons(ctx context.Context) ([]Icon, error) {
	var resp struct {
		DisplayIcons []Icon `json:"displayIcons"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/media/displayIcons/user/yoto", nil, &resp); err != nil {
		return nil, err
	}
	return resp.DisplayIcons, nil
}

// UploadIcon uploads custom 16x16 PNG pixel data and returns its mediaId.
// The platform resizes and converts as needed.
func (c *Client) UploadIcon(ctx context.Context, png []byte) (string, error) {
	auth, err := c.authHeader(ctx)
	if err != nil {
		return "", err
	}

	path := "/media/displayIcons/user/me/upload?autoConvert=true&filename=card-icon.png"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(png))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("icon upload returned status %d", resp.StatusCode)
	}

	var result struct {
		DisplayIcon struct {
			MediaID string `json:"mediaId"`
		} `json:"displayIcon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode icon response: %w", err)
	}
	if result.DisplayIcon.MediaID == "" {
		return "", fmt.Errorf("no media id returned for icon")
	}
	return result.DisplayIcon.MediaID, nil
}
