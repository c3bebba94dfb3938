package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mixcard/internal/cardapi"
	"mixcard/internal/models"
	"mixcard/internal/pipeline"
	"mixcard/internal/providers"
	"mixcard/internal/repositories"
	"mixcard/internal/shared"
)

type fakeProvider struct {
	results   map[string][]models.Candidate
	searchErr error
	fetchErr  error
}

func (p *fakeProvider) Name() string          { return "fake" }
func (p *fakeProvider) SupportsPreview() bool { return false }

func (p *fakeProvider) Search(ctx context.Context, query, artistHint string) ([]models.Candidate, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.results[query], nil
}

func (p *fakeProvider) Fetch(ctx context.Context, candidate models.Candidate, outputDir string) (string, error) {
	if p.fetchErr != nil {
		return "", p.fetchErr
	}
	return providers.AudioPath(outputDir, candidate), nil
}

type fakePublisher struct {
	result *cardapi.PublishResult
	err    error
	calls  int
}

func (p *fakePublisher) Publish(ctx context.Context, pl *models.Playlist, name string) (*cardapi.PublishResult, error) {
	p.calls++
	if p.err != nil && p.result == nil {
		return nil, p.err
	}
	return p.result, p.err
}

func newTestRouter(t *testing.T, provider providers.Provider, publisher Publisher) *BasicRouter {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := repositories.Bootstrap(db); err != nil {
		t.Fatal(err)
	}

	pipe := pipeline.New(provider, t.TempDir(), shared.NewLogger(io.Discard))
	pipe.Rand = rand.New(rand.NewSource(1))

	router := NewBasicRouter()
	router.Handler(NewWizardHandler(pipe, repositories.NewSessionRepository(db), publisher, shared.NewLogger(io.Discard)))
	return router
}

func doRequest(t *testing.T, router *BasicRouter, method, path string, body any) (*httptest.ResponseRecorder, *models.Session) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var session models.Session
	if w.Code < 300 && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &session); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return w, &session
}

func TestCreateSession(t *testing.T) {
	provider := &fakeProvider{}
	router := newTestRouter(t, provider, nil)

	w, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles":  []string{"Yesterday - The Beatles", "", "Imagine - John Lennon"},
		"name":    "Road Trip",
		"cap":     5,
		"shuffle": false,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if session.ID == "" {
		t.Error("session has no id")
	}
	if session.Phase != models.PhaseShuffled {
		t.Errorf("phase = %s, want shuffled", session.Phase)
	}
	if len(session.Source.Items) != 2 {
		t.Errorf("source items = %d, want 2 (blank dropped)", len(session.Source.Items))
	}
	if len(session.Working.Items) != 2 {
		t.Fatalf("working items = %d, want 2", len(session.Working.Items))
	}
	for i, item := range session.Working.Items {
		if item.Ordinal != i+1 {
			t.Errorf("item %d ordinal = %d", i, item.Ordinal)
		}
	}
}

func TestCreateSessionEmpty(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{}, nil)

	w, _ := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{"titles": []string{""}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{}, nil)

	w, _ := doRequest(t, router, http.MethodGet, "/api/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMatchFlow(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]models.Candidate{
			"Yesterday The Beatles": {
				{ID: "v1", Title: "Yesterday", Artist: "The Beatles", Source: "fake"},
				{ID: "v2", Title: "Yesterday (Live)", Artist: "The Beatles", Source: "fake"},
			},
		},
	}
	router := newTestRouter(t, provider, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Yesterday - The Beatles"}, "shuffle": false,
	})
	base := "/api/sessions/" + session.ID

	w, session := doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "search"})
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", w.Code, w.Body.String())
	}
	if got := len(session.Working.Items[0].Candidates); got != 2 {
		t.Fatalf("candidates = %d, want 2", got)
	}
	if session.Working.Items[0].State != models.StateSearched {
		t.Errorf("state = %s, want searched", session.Working.Items[0].State)
	}

	w, session = doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "confirm", Candidate: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d", w.Code)
	}
	if session.Working.Items[0].Selected == nil || session.Working.Items[0].Selected.ID != "v2" {
		t.Errorf("selected = %+v", session.Working.Items[0].Selected)
	}

	// state survives a reload
	w, session = doRequest(t, router, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	if session.Working.Items[0].State != models.StateConfirmed {
		t.Errorf("persisted state = %s, want confirmed", session.Working.Items[0].State)
	}
}

func TestMatchUnknownAction(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{}, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})

	w, _ := doRequest(t, router, http.MethodPost, "/api/sessions/"+session.ID+"/match",
		matchRequest{Ordinal: 1, Action: "explode"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMatchUnknownOrdinal(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{}, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})

	w, _ := doRequest(t, router, http.MethodPost, "/api/sessions/"+session.ID+"/match",
		matchRequest{Ordinal: 42, Action: "skip"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestShuffleDiscardsSelections(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]models.Candidate{
			"Imagine": {{ID: "v1", Title: "Imagine", Artist: "John Lennon", Source: "fake"}},
		},
	}
	router := newTestRouter(t, provider, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})
	base := "/api/sessions/" + session.ID

	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "search"})
	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "confirm"})

	w, session := doRequest(t, router, http.MethodPost, base+"/shuffle", shuffleRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("shuffle status = %d", w.Code)
	}
	item := session.Working.Items[0]
	if item.State != models.StatePending || item.Selected != nil || len(item.Candidates) != 0 {
		t.Errorf("reshuffled item kept prior state: %+v", item)
	}
}

func TestFetch(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]models.Candidate{
			"Imagine": {{ID: "v1", Title: "Imagine", Artist: "John Lennon", Source: "fake"}},
		},
	}
	router := newTestRouter(t, provider, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})
	base := "/api/sessions/" + session.ID

	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "search"})
	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "confirm"})

	w, session := doRequest(t, router, http.MethodPost, base+"/fetch", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch status = %d: %s", w.Code, w.Body.String())
	}
	if session.Working.Items[0].State != models.StateFetched {
		t.Errorf("state = %s, want fetched", session.Working.Items[0].State)
	}
	if session.Working.Items[0].FilePath == "" {
		t.Error("fetched item has no file path")
	}
}

func TestPublish(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]models.Candidate{
			"Imagine": {{ID: "v1", Title: "Imagine", Artist: "John Lennon", Source: "fake"}},
		},
	}
	publisher := &fakePublisher{result: &cardapi.PublishResult{CardID: "card-1"}}
	router := newTestRouter(t, provider, publisher)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "name": "Mix", "shuffle": false,
	})
	base := "/api/sessions/" + session.ID

	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "search"})
	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "confirm"})
	doRequest(t, router, http.MethodPost, base+"/fetch", nil)

	req := httptest.NewRequest(http.MethodPost, base+"/publish", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("publish status = %d: %s", w.Code, w.Body.String())
	}
	if publisher.calls != 1 {
		t.Errorf("publisher calls = %d", publisher.calls)
	}

	var resp publishResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Session.Phase != models.PhasePublished || resp.Session.CardID != "card-1" {
		t.Errorf("session after publish = %s/%s", resp.Session.Phase, resp.Session.CardID)
	}
	if resp.Session.CardName != "Mix" {
		t.Errorf("card name = %q, want session default", resp.Session.CardName)
	}
	if resp.Partial {
		t.Error("publish reported partial")
	}
}

func TestPublishPartial(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]models.Candidate{
			"Imagine": {{ID: "v1", Title: "Imagine", Artist: "John Lennon", Source: "fake"}},
		},
	}
	publisher := &fakePublisher{
		result: &cardapi.PublishResult{
			CardID:   "card-1",
			Excluded: []cardapi.ExcludedTrack{{Ordinal: 2, Title: "Hey Jude", Reason: "upload failed"}},
		},
		err: fmt.Errorf("%w: 1 of 2 tracks excluded", shared.ErrPublishPartial),
	}
	router := newTestRouter(t, provider, publisher)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "name": "Mix", "shuffle": false,
	})
	base := "/api/sessions/" + session.ID

	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "search"})
	doRequest(t, router, http.MethodPost, base+"/match", matchRequest{Ordinal: 1, Action: "confirm"})
	doRequest(t, router, http.MethodPost, base+"/fetch", nil)

	req := httptest.NewRequest(http.MethodPost, base+"/publish", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("partial publish status = %d, want 200", w.Code)
	}
	var resp publishResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Partial {
		t.Error("partial flag not set")
	}
	if resp.Session.CardID != "card-1" {
		t.Errorf("card id = %q", resp.Session.CardID)
	}
}

func TestPublishNotReady(t *testing.T) {
	publisher := &fakePublisher{result: &cardapi.PublishResult{CardID: "card-1"}}
	router := newTestRouter(t, &fakeProvider{}, publisher)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})

	w, _ := doRequest(t, router, http.MethodPost, "/api/sessions/"+session.ID+"/publish", publishRequest{Name: "Mix"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "1 items still need attention") {
		t.Errorf("error body = %s, want pending count", w.Body.String())
	}
	if publisher.calls != 0 {
		t.Error("publisher called for unready playlist")
	}
}

func TestPublishWithoutPublisher(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{}, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})

	w, _ := doRequest(t, router, http.MethodPost, "/api/sessions/"+session.ID+"/publish", publishRequest{Name: "Mix"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{}, nil)

	_, session := doRequest(t, router, http.MethodPost, "/api/sessions", map[string]any{
		"titles": []string{"Imagine"}, "shuffle": false,
	})

	w, _ := doRequest(t, router, http.MethodDelete, "/api/sessions/"+session.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w, _ = doRequest(t, router, http.MethodGet, "/api/sessions/"+session.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", w.Code)
	}
}
