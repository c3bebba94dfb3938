package models

import "time"

// SessionPhase marks how far a wizard session has progressed.
type SessionPhase string

const (
	PhaseBuilt     SessionPhase = "built"
	PhaseShuffled  SessionPhase = "shuffled"
	PhaseMatching  SessionPhase = "matching"
	PhaseFetching  SessionPhase = "fetching"
	PhasePublished SessionPhase = "published"
)

// Session is one web wizard run: the built source playlist (kept so a
// reshuffle can restart from full membership), the working playlist being
// advanced through the phases, and the publish outcome.
type Session struct {
	ID        string       `json:"id"`
	Phase     SessionPhase `json:"phase"`
	Source    *Playlist    `json:"source"`
	Working   *Playlist    `json:"working,omitempty"`
	CardName  string       `json:"cardName,omitempty"`
	CardID    string       `json:"cardId,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Current returns the playlist phase steps should operate on.
func (s *Session) Current() *Playlist {
	if s.Working != nil {
		return s.Working
	}
	return s.Source
}
