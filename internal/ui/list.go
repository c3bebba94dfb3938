package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"mixcard/internal/models"
)

var (
	_ list.Item = songEntry{}
	_ list.Item = candidateEntry{}
)

// songEntry wraps [models.SongItem] to implement [list.Item].
type songEntry struct {
	item *models.SongItem
}

func (e songEntry) FilterValue() string { return e.item.Request.Title }
func (e songEntry) Title() string {
	return fmt.Sprintf("%d. %s", e.item.Ordinal, e.item.Request.Raw)
}

func (e songEntry) Description() string {
	switch e.item.State {
	case models.StateConfirmed:
		return styles.ok.Render("✓ " + e.item.Selected.Label())
	case models.StateFetched:
		return styles.ok.Render("✓ downloaded")
	case models.StateSkipped:
		return styles.help.Render("skipped")
	case models.StateFailed:
		return styles.err.Render("✗ " + e.item.ErrorDetail)
	case models.StateSearched:
		return fmt.Sprintf("%d candidates", len(e.item.Candidates))
	default:
		return string(e.item.State)
	}
}

// candidateEntry wraps [models.Candidate] to implement [list.Item].
type candidateEntry struct {
	candidate models.Candidate
	index     int
}

func (e candidateEntry) FilterValue() string { return e.candidate.Title }
func (e candidateEntry) Title() string       { return e.candidate.Label() }
func (e candidateEntry) Description() string {
	desc := e.candidate.Source
	if e.candidate.Duration != "" {
		desc = fmt.Sprintf("%s • %s", desc, e.candidate.Duration)
	}
	if e.candidate.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, e.candidate.Album)
	}
	return desc
}
