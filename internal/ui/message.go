package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"mixcard/internal/cardapi"
	"mixcard/internal/models"
	"mixcard/internal/pipeline"
)

var (
	_ tea.Msg = searchDoneMsg{}
	_ tea.Msg = fetchProgressMsg{}
	_ tea.Msg = fetchCompleteMsg{}
	_ tea.Msg = publishCompleteMsg{}
)

// searchDoneMsg reports a finished provider search for one song.
type searchDoneMsg struct {
	item *models.SongItem
	err  error
}

// fetchProgressMsg carries one download progress update.
type fetchProgressMsg pipeline.ProgressUpdate

// fetchCompleteMsg reports the end of the download pass.
type fetchCompleteMsg struct {
	fetched int
	err     error
}

// publishCompleteMsg reports the outcome of card creation.
type publishCompleteMsg struct {
	result *cardapi.PublishResult
	err    error
}
