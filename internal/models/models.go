// package models defines the data model for the card builder pipeline
package models

import (
	"strings"
	"time"
)

// SongRequest is the immutable ingestion unit: the raw line the user typed,
// plus an artist hint when the line follows the "Title - Artist" convention.
type SongRequest struct {
	Raw    string `json:"raw"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

// NewSongRequest parses a raw title line into a SongRequest.
//
// A single " - " separator splits title from artist hint. Lines without the
// separator are treated as title-only queries.
func NewSongRequest(raw string) SongRequest {
	req := SongRequest{Raw: strings.TrimSpace(raw)}
	if title, artist, found := strings.Cut(req.Raw, " - "); found {
		req.Title = strings.TrimSpace(title)
		req.Artist = strings.TrimSpace(artist)
	} else {
		req.Title = req.Raw
	}
	return req
}

// Query returns the search query for this request.
func (r SongRequest) Query() string {
	if r.Artist != "" {
		return r.Title + " " + r.Artist
	}
	return r.Title
}

// Candidate is a provider-returned possible match for a song query.
type Candidate struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	Duration   string `json:"duration,omitempty"`
	Source     string `json:"source"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Label returns the "Artist - Title" display string for the candidate.
func (c Candidate) Label() string {
	return c.Artist + " - " + c.Title
}

// SongState represents the lifecycle of a SongItem.
type SongState string

const (
	StatePending   SongState = "pending"
	StateSearched  SongState = "searched"
	StateConfirmed SongState = "confirmed"
	StateFetched   SongState = "fetched"
	StateSkipped   SongState = "skipped"
	StateFailed    SongState = "failed"
)

// transitions lists the legal state changes. Searched→Searched covers
// user-triggered re-search with a revised query.
var transitions = map[SongState][]SongState{
	StatePending:   {StateSearched, StateFailed, StateSkipped},
	StateSearched:  {StateSearched, StateConfirmed, StateSkipped, StateFailed},
	StateConfirmed: {StateFetched, StateSearched, StateFailed, StateSkipped},
	StateFailed:    {StatePending, StateSearched, StateConfirmed, StateSkipped},
	StateFetched:   {StateSearched},
	StateSkipped:   {},
}

// CanTransition reports whether moving from s to next is legal.
func (s SongState) CanTransition(next SongState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state exits the pipeline. Fetched and Skipped
// items are the only ones eligible to leave; Failed items stay retryable.
func (s SongState) Terminal() bool {
	return s == StateFetched || s == StateSkipped
}

// SongItem is the mutable per-song unit the pipeline advances through phases.
type SongItem struct {
	Request     SongRequest `json:"request"`
	Ordinal     int         `json:"ordinal"`
	State       SongState   `json:"state"`
	Candidates  []Candidate `json:"candidates,omitempty"`
	Selected    *Candidate  `json:"selected,omitempty"`
	FilePath    string      `json:"filePath,omitempty"`
	ErrorDetail string      `json:"errorDetail,omitempty"`

	// prior state restored on retry after a failure
	RetryState SongState `json:"retryState,omitempty"`
}

// Playlist is the ordered collection of SongItems plus run settings.
type Playlist struct {
	Items   []*SongItem `json:"items"`
	Cap     int         `json:"cap"`
	Shuffle bool        `json:"shuffle"`
	Name    string      `json:"name,omitempty"`
}

// FetchedItems returns the items eligible for publish, in ordinal order.
func (p *Playlist) FetchedItems() []*SongItem {
	var out []*SongItem
	for _, item := range p.Items {
		if item.State == StateFetched {
			out = append(out, item)
		}
	}
	return out
}

// PendingWork returns the items still requiring a phase step (anything not
// Fetched or Skipped).
func (p *Playlist) PendingWork() []*SongItem {
	var out []*SongItem
	for _, item := range p.Items {
		if !item.State.Terminal() {
			out = append(out, item)
		}
	}
	return out
}

// CardIcon references a 16x16 display icon: either an identifier into the
// destination's shared catalog or raw generated PNG bytes to upload.
type CardIcon struct {
	MediaID string `json:"mediaId,omitempty"`
	PNG     []byte `json:"png,omitempty"`
}

// Zero reports whether no icon was resolved.
func (i CardIcon) Zero() bool {
	return i.MediaID == "" && len(i.PNG) == 0
}

// Credential is the persisted token pair for the card service.
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"`
	AccountID    string    `json:"accountId,omitempty"`
}

// Valid reports whether the access token is present and unexpired.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && time.Now().Before(c.Expiry)
}

// Refreshable reports whether an expired credential can still be renewed.
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}
