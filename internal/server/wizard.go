package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"mixcard/internal/cardapi"
	"mixcard/internal/models"
	"mixcard/internal/pipeline"
	"mixcard/internal/repositories"
	"mixcard/internal/shared"
)

// Publisher is the publish capability the wizard drives. Satisfied by
// [cardapi.Sequencer].
type Publisher interface {
	Publish(ctx context.Context, pl *models.Playlist, name string) (*cardapi.PublishResult, error)
}

// WizardHandler serves the web wizard's JSON API. Each request loads the
// session, applies one phase step, persists, and responds with the state.
type WizardHandler struct {
	pipe      *pipeline.Pipeline
	sessions  *repositories.SessionRepository
	publisher Publisher
	logger    *log.Logger
}

// NewWizardHandler creates the wizard API handler. publisher may be nil when
// no destination credential is configured; publish requests then fail with
// 401.
func NewWizardHandler(pipe *pipeline.Pipeline, sessions *repositories.SessionRepository, publisher Publisher, logger *log.Logger) *WizardHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &WizardHandler{
		pipe:      pipe,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
}

// Routes returns the path patterns this handler serves.
func (h *WizardHandler) Routes() []string {
	return []string{
		"POST /api/sessions",
		"GET /api/sessions/{id}",
		"DELETE /api/sessions/{id}",
		"POST /api/sessions/{id}/shuffle",
		"POST /api/sessions/{id}/match",
		"POST /api/sessions/{id}/fetch",
		"POST /api/sessions/{id}/publish",
	}
}

func (h *WizardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch {
	case id == "":
		h.createSession(w, r)
	case r.Method == http.MethodGet:
		h.getSession(w, r, id)
	case r.Method == http.MethodDelete:
		h.deleteSession(w, r, id)
	default:
		session, err := h.sessions.Get(id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		switch {
		case pathSuffix(r) == "shuffle":
			h.shuffle(w, r, session)
		case pathSuffix(r) == "match":
			h.match(w, r, session)
		case pathSuffix(r) == "fetch":
			h.fetch(w, r, session)
		case pathSuffix(r) == "publish":
			h.publish(w, r, session)
		default:
			http.NotFound(w, r)
		}
	}
}

func pathSuffix(r *http.Request) string {
	path := r.URL.Path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

type createSessionRequest struct {
	Titles  []string `json:"titles"`
	Name    string   `json:"name"`
	Cap     int      `json:"cap"`
	Shuffle *bool    `json:"shuffle"`
}

// createSession builds a playlist from raw titles and runs the first
// shuffle/cap pass.
func (h *WizardHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	built, err := h.pipe.Build(req.Titles)
	if err != nil {
		h.writeError(w, err)
		return
	}
	built.Name = req.Name

	shuffle := true
	if req.Shuffle != nil {
		shuffle = *req.Shuffle
	}
	cap := req.Cap
	if cap == 0 {
		cap = pipeline.DefaultCap
	}

	working, err := h.pipe.ShuffleAndCap(built, cap, shuffle)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session := &models.Session{
		Phase:    models.PhaseShuffled,
		Source:   built,
		Working:  working,
		CardName: req.Name,
	}
	if err := h.sessions.Create(session); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("session created", "session", session.ID, "songs", len(session.Working.Items))
	h.writeJSON(w, http.StatusCreated, session)
}

func (h *WizardHandler) getSession(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *WizardHandler) deleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.sessions.Delete(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shuffleRequest struct {
	Cap     int   `json:"cap"`
	Shuffle *bool `json:"shuffle"`
}

// shuffle re-derives the working playlist from the built one, discarding all
// prior candidates and selections.
func (h *WizardHandler) shuffle(w http.ResponseWriter, r *http.Request, session *models.Session) {
	// empty body = reshuffle with the session's current settings
	var req shuffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	cap := req.Cap
	if cap == 0 {
		cap = session.Current().Cap
	}
	shuffle := session.Current().Shuffle
	if req.Shuffle != nil {
		shuffle = *req.Shuffle
	}

	working, err := h.pipe.ShuffleAndCap(session.Source, cap, shuffle)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session.Working = working
	session.Phase = models.PhaseShuffled
	session.CardID = ""

	if err := h.sessions.Update(session); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

type matchRequest struct {
	Ordinal   int    `json:"ordinal"`
	Action    string `json:"action"`
	Candidate int    `json:"candidate"`
	Query     string `json:"query"`
}

// match applies one search/confirm/skip/retry step to a single item.
func (h *WizardHandler) match(w http.ResponseWriter, r *http.Request, session *models.Session) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	var item *models.SongItem
	for _, candidate := range session.Current().Items {
		if candidate.Ordinal == req.Ordinal {
			item = candidate
			break
		}
	}
	if item == nil {
		h.writeError(w, fmt.Errorf("%w: no item with ordinal %d", shared.ErrInvalidInput, req.Ordinal))
		return
	}

	var err error
	switch req.Action {
	case "search":
		err = h.pipe.AdvanceSearch(r.Context(), item, req.Query)
	case "confirm":
		err = h.pipe.Confirm(item, req.Candidate)
	case "skip":
		err = h.pipe.Skip(item)
	case "retry":
		err = h.pipe.RetryItem(item)
	default:
		err = fmt.Errorf("%w: unknown action %q", shared.ErrInvalidInput, req.Action)
	}
	if err != nil && !errors.Is(err, shared.ErrSearchUnavailable) {
		h.writeError(w, err)
		return
	}

	session.Phase = models.PhaseMatching
	if updateErr := h.sessions.Update(session); updateErr != nil {
		h.writeError(w, updateErr)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// fetch downloads every confirmed item in the session.
func (h *WizardHandler) fetch(w http.ResponseWriter, r *http.Request, session *models.Session) {
	session.Phase = models.PhaseFetching
	if _, err := h.pipe.FetchAll(r.Context(), session.Current(), nil); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.sessions.Update(session); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

type publishRequest struct {
	Name string `json:"name"`
}

type publishResponse struct {
	Session *models.Session        `json:"session"`
	Result  *cardapi.PublishResult `json:"result"`
	Partial bool                   `json:"partial,omitempty"`
}

// publish uploads the session's fetched tracks and creates the card.
// Partial success still responds 200 so the client can show what made it.
func (h *WizardHandler) publish(w http.ResponseWriter, r *http.Request, session *models.Session) {
	if h.publisher == nil {
		h.writeError(w, shared.ErrNotAuthenticated)
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	name := req.Name
	if name == "" {
		name = session.CardName
	}

	playlist := session.Current()
	if !h.pipe.IsReadyToPublish(playlist) {
		h.writeError(w, fmt.Errorf("%w: %d items still need attention", shared.ErrNotReady, len(playlist.PendingWork())))
		return
	}

	result, err := h.publisher.Publish(r.Context(), playlist, name)
	partial := errors.Is(err, shared.ErrPublishPartial)
	if err != nil && !partial {
		h.writeError(w, err)
		return
	}

	session.Phase = models.PhasePublished
	session.CardName = name
	session.CardID = result.CardID
	if err := h.sessions.Update(session); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, publishResponse{Session: session, Result: result, Partial: partial})
}

func (h *WizardHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "err", err)
	}
}

// writeError maps sentinel errors to HTTP statuses.
func (h *WizardHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidTransition), errors.Is(err, shared.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthExpired), errors.Is(err, shared.ErrRefreshFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrSearchUnavailable), errors.Is(err, shared.ErrFetchFailed), errors.Is(err, shared.ErrUploadFailed):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
