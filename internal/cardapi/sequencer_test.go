package cardapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

// cardServer fakes the full publish surface: upload url, transcode status,
// icon catalog, icon upload, and content creation.
type cardServer struct {
	srv *httptest.Server

	failUploads map[string]bool // sha256 prefix → fail the transcode
	icons       []Icon

	uploadedFiles int
	createdCard   map[string]any
}

func newCardServer(t *testing.T) *cardServer {
	t.Helper()
	cs := &cardServer{failUploads: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/media/transcode/audio/uploadUrl", func(w http.ResponseWriter, r *http.Request) {
		sum := r.URL.Query().Get("sha256")
		json.NewEncoder(w).Encode(map[string]any{
			"upload": map[string]string{"uploadId": sum, "uploadUrl": cs.srv.URL + "/put/" + sum},
		})
	})
	mux.HandleFunc("/put/", func(w http.ResponseWriter, r *http.Request) {
		cs.uploadedFiles++
	})
	mux.HandleFunc("/media/upload/", func(w http.ResponseWriter, r *http.Request) {
		sum := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/media/upload/"), "/transcoded")
		if cs.failUploads[sum] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transcode": map[string]any{
				"transcodedSha256": "t-" + sum,
				"transcodedInfo":   map[string]any{"duration": 60, "fileSize": 1000},
			},
		})
	})
	mux.HandleFunc("/media/displayIcons/user/yoto", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"displayIcons": cs.icons})
	})
	mux.HandleFunc("/media/displayIcons/user/me/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"displayIcon": map[string]string{"mediaId": "generated-icon"}})
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&cs.createdCard)
		json.NewEncoder(w).Encode(map[string]any{"card": map[string]string{"cardId": "card-99"}})
	})

	cs.srv = httptest.NewServer(mux)
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *cardServer) client() *Client {
	c := NewClient(cs.srv.URL, staticTokens{token: "tok"}, cs.srv.Client())
	c.PollInterval = time.Millisecond
	c.MaxPolls = 3
	return c
}

func fetchedPlaylist(t *testing.T, titles ...string) *models.Playlist {
	t.Helper()
	dir := t.TempDir()
	pl := &models.Playlist{Name: "Test Card"}
	for i, title := range titles {
		path := filepath.Join(dir, title+".mp3")
		if err := os.WriteFile(path, []byte("audio-"+title), 0644); err != nil {
			t.Fatal(err)
		}
		sel := models.Candidate{ID: title, Title: title, Artist: "Artist"}
		pl.Items = append(pl.Items, &models.SongItem{
			Request:  models.NewSongRequest(title),
			Ordinal:  i + 1,
			State:    models.StateFetched,
			Selected: &sel,
			FilePath: path,
		})
	}
	return pl
}

func TestPublish(t *testing.T) {
	cs := newCardServer(t)
	cs.icons = []Icon{{MediaID: "music-icon", Title: "music note", PublicTags: []string{"music"}}}

	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))

	var steps []string
	seq.OnProgress = func(step, total int, message string) { steps = append(steps, message) }

	result, err := seq.Publish(context.Background(), fetchedPlaylist(t, "One", "Two"), "Road Trip")
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if result.CardID != "card-99" {
		t.Errorf("card id = %q", result.CardID)
	}
	if len(result.Uploaded) != 2 || len(result.Excluded) != 0 {
		t.Errorf("uploaded=%d excluded=%d", len(result.Uploaded), len(result.Excluded))
	}
	if result.IconID != "music-icon" {
		t.Errorf("icon = %q, want catalog match", result.IconID)
	}
	if cs.uploadedFiles != 2 {
		t.Errorf("file uploads = %d", cs.uploadedFiles)
	}
	if len(steps) != 3 {
		t.Errorf("progress steps = %v", steps)
	}

	title := cs.createdCard["title"]
	if title != "Road Trip" {
		t.Errorf("created card title = %v", title)
	}
}

func TestPublishPartialFailure(t *testing.T) {
	cs := newCardServer(t)
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))
	seq.SetIconStrategies(nil, nil)

	pl := fetchedPlaylist(t, "Good", "Bad", "AlsoGood")
	badSum, err := sha256File(pl.Items[1].FilePath)
	if err != nil {
		t.Fatal(err)
	}
	cs.failUploads[badSum] = true

	result, err := seq.Publish(context.Background(), pl, "Partial")
	if !errors.Is(err, shared.ErrPublishPartial) {
		t.Fatalf("error = %v, want ErrPublishPartial", err)
	}
	if result == nil {
		t.Fatal("partial publish must still return the result")
	}
	if result.CardID != "card-99" {
		t.Errorf("card id = %q, card should still be created", result.CardID)
	}
	if len(result.Uploaded) != 2 {
		t.Errorf("uploaded = %d, want 2", len(result.Uploaded))
	}
	if len(result.Excluded) != 1 || result.Excluded[0].Ordinal != 2 {
		t.Errorf("excluded = %+v", result.Excluded)
	}
	if result.Excluded[0].Reason == "" {
		t.Error("exclusion reason missing")
	}
}

func TestPublishAllUploadsFail(t *testing.T) {
	cs := newCardServer(t)
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))
	seq.SetIconStrategies(nil, nil)

	pl := fetchedPlaylist(t, "Only")
	sum, err := sha256File(pl.Items[0].FilePath)
	if err != nil {
		t.Fatal(err)
	}
	cs.failUploads[sum] = true

	if _, err := seq.Publish(context.Background(), pl, "Doomed"); !errors.Is(err, shared.ErrUploadFailed) {
		t.Errorf("error = %v, want ErrUploadFailed", err)
	}
	if cs.createdCard != nil {
		t.Error("no card should be created when every upload fails")
	}
}

func TestPublishNotReady(t *testing.T) {
	cs := newCardServer(t)
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))

	pl := fetchedPlaylist(t, "Done")
	pl.Items = append(pl.Items, &models.SongItem{
		Request: models.NewSongRequest("Still searching"),
		Ordinal: 2,
		State:   models.StateSearched,
	})

	if _, err := seq.Publish(context.Background(), pl, "Early"); !errors.Is(err, shared.ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestPublishNothingFetched(t *testing.T) {
	cs := newCardServer(t)
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))

	pl := &models.Playlist{Items: []*models.SongItem{{Ordinal: 1, State: models.StateSkipped}}}

	if _, err := seq.Publish(context.Background(), pl, "Empty"); !errors.Is(err, shared.ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestPublishChecksCredentialBeforeUploads(t *testing.T) {
	cs := newCardServer(t)
	c := NewClient(cs.srv.URL, staticTokens{err: shared.ErrAuthExpired}, cs.srv.Client())
	seq := NewSequencer(c, shared.NewLogger(os.Stderr))

	_, err := seq.Publish(context.Background(), fetchedPlaylist(t, "One"), "Card")
	if !errors.Is(err, shared.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if cs.uploadedFiles != 0 {
		t.Errorf("uploads started with an expired credential: %d", cs.uploadedFiles)
	}
}

func TestPublishIconFallbackToGenerator(t *testing.T) {
	cs := newCardServer(t)
	cs.icons = nil // empty catalog forces the generator path
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))

	result, err := seq.Publish(context.Background(), fetchedPlaylist(t, "One"), "Generated")
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if result.IconID != "generated-icon" {
		t.Errorf("icon = %q, want generated upload", result.IconID)
	}
}

func TestResolveIcon(t *testing.T) {
	cs := newCardServer(t)
	cs.icons = []Icon{{MediaID: "music-icon", Title: "music note", PublicTags: []string{"music"}}}
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))

	icon := seq.resolveIcon(context.Background(), []string{"One"}, "Mix")
	if icon.MediaID != "music-icon" || len(icon.PNG) != 0 {
		t.Errorf("catalog match = %+v, want media id only", icon)
	}

	cs.icons = nil
	icon = seq.resolveIcon(context.Background(), []string{"One"}, "Mix")
	if icon.MediaID != "" || len(icon.PNG) == 0 {
		t.Errorf("generator fallback = %+v, want png bytes only", icon)
	}

	seq.SetIconStrategies(nil, nil)
	if icon := seq.resolveIcon(context.Background(), []string{"One"}, "Mix"); !icon.Zero() {
		t.Errorf("no strategies = %+v, want zero icon", icon)
	}
}

func TestPublishWithoutName(t *testing.T) {
	cs := newCardServer(t)
	seq := NewSequencer(cs.client(), shared.NewLogger(os.Stderr))

	if _, err := seq.Publish(context.Background(), fetchedPlaylist(t, "One"), ""); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
