package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"mixcard/internal/cardapi"
	"mixcard/internal/models"
	"mixcard/internal/pipeline"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SongListView ViewState = iota
	CandidateView
	FetchView
	ResultView
)

// PublishFunc creates the card from a fully fetched playlist. Wired to
// [cardapi.Sequencer.Publish]; nil disables the publish step.
type PublishFunc func(ctx context.Context, pl *models.Playlist, name string) (*cardapi.PublishResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	pipe         *pipeline.Pipeline
	playlist     *models.Playlist
	cardName     string
	publish      PublishFunc
	width        int
	height       int
	songList     list.Model
	candList     list.Model
	active       *models.SongItem
	searching    bool
	progressChan chan pipeline.ProgressUpdate
	progress     pipeline.ProgressUpdate
	fetched      int
	result       *cardapi.PublishResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model over a shuffled playlist ready for the
// match phase.
func NewModel(ctx context.Context, pipe *pipeline.Pipeline, playlist *models.Playlist, cardName string, publish PublishFunc) *Model {
	m := &Model{
		ctx:      ctx,
		view:     SongListView,
		pipe:     pipe,
		playlist: playlist,
		cardName: cardName,
		publish:  publish,
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.songList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.songList.Title = listTitle(cardName)
	m.refreshSongs()
	return m
}

func listTitle(cardName string) string {
	if cardName == "" {
		return "Songs"
	}
	return fmt.Sprintf("Songs for '%s'", cardName)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.songList.SetSize(msg.Width-4, msg.Height-8)
		if m.candList.Width() == 0 {
			m.candList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SongListView:
			return m.handleSongListKeys(msg)
		case CandidateView:
			return m.handleCandidateKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case searchDoneMsg:
		m.searching = false
		m.refreshSongs()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.openCandidates(msg.item)
		return m, nil

	case fetchProgressMsg:
		m.progress = pipeline.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case fetchCompleteMsg:
		m.fetched = msg.fetched
		m.err = msg.err
		m.progressChan = nil
		m.refreshSongs()
		if msg.err == nil && m.canPublish() {
			return m, m.startPublish()
		}
		m.view = ResultView
		return m, nil

	case publishCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SongListView:
		return m.renderSongList()
	case CandidateView:
		return m.renderCandidates()
	case FetchView:
		return m.renderFetch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		item := m.selectedSong()
		if item == nil || m.searching {
			return m, nil
		}
		switch item.State {
		case models.StateSearched:
			m.openCandidates(item)
			return m, nil
		case models.StateSkipped:
			return m, nil
		default:
			m.searching = true
			return m, m.searchSong(item)
		}
	case "s":
		if item := m.selectedSong(); item != nil {
			if err := m.pipe.Skip(item); err == nil {
				m.refreshSongs()
			}
		}
		return m, nil
	case "r":
		if item := m.selectedSong(); item != nil && item.State == models.StateFailed {
			if err := m.pipe.RetryItem(item); err == nil {
				m.refreshSongs()
			}
		}
		return m, nil
	case "f":
		return m, m.startFetch()
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) handleCandidateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = SongListView
		return m, nil
	case "enter":
		selected := m.candList.SelectedItem()
		if entry, ok := selected.(candidateEntry); ok {
			if err := m.pipe.Confirm(m.active, entry.index); err != nil {
				m.err = err
				return m, nil
			}
			m.refreshSongs()
			m.view = SongListView
		}
		return m, nil
	case "s":
		if err := m.pipe.Skip(m.active); err == nil {
			m.refreshSongs()
			m.view = SongListView
		}
		return m, nil
	case "r":
		m.searching = true
		m.view = SongListView
		return m, m.searchSong(m.active)
	}

	var cmd tea.Cmd
	m.candList, cmd = m.candList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	case "p":
		// publish was skipped (fetch error or partial downloads); the user
		// can still create the card from whatever was fetched
		if m.canPublish() {
			return m, m.startPublish()
		}
	}
	return m, nil
}

func (m *Model) canPublish() bool {
	return m.publish != nil && m.result == nil &&
		m.pipe.IsReadyToPublish(m.playlist) && len(m.playlist.FetchedItems()) > 0
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SongListView:
		m.songList, cmd = m.songList.Update(msg)
	case CandidateView:
		m.candList, cmd = m.candList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedSong() *models.SongItem {
	selected := m.songList.SelectedItem()
	if entry, ok := selected.(songEntry); ok {
		return entry.item
	}
	return nil
}

// refreshSongs rebuilds the song list entries, preserving the cursor.
func (m *Model) refreshSongs() {
	index := m.songList.Index()
	items := make([]list.Item, len(m.playlist.Items))
	for i, item := range m.playlist.Items {
		items[i] = songEntry{item: item}
	}
	m.songList.SetItems(items)
	if index < len(items) {
		m.songList.Select(index)
	}
}

func (m *Model) openCandidates(item *models.SongItem) {
	m.active = item
	entries := make([]list.Item, len(item.Candidates))
	for i, c := range item.Candidates {
		entries[i] = candidateEntry{candidate: c, index: i}
	}
	m.candList = list.New(entries, list.NewDefaultDelegate(), m.width-4, m.height-8)
	m.candList.Title = fmt.Sprintf("Matches for '%s'", item.Request.Raw)
	m.view = CandidateView
}

func (m *Model) searchSong(item *models.SongItem) tea.Cmd {
	return func() tea.Msg {
		err := m.pipe.AdvanceSearch(m.ctx, item, "")
		return searchDoneMsg{item: item, err: err}
	}
}

func (m *Model) startFetch() tea.Cmd {
	m.view = FetchView
	m.progressChan = make(chan pipeline.ProgressUpdate, 50)
	progressChan := m.progressChan

	go func() {
		fetched, err := m.pipe.FetchAll(m.ctx, m.playlist, progressChan)
		m.fetched = fetched
		m.err = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return fetchCompleteMsg{fetched: m.fetched, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return fetchCompleteMsg{fetched: m.fetched, err: m.err}
		}
		return fetchProgressMsg(update)
	}
}

func (m *Model) startPublish() tea.Cmd {
	m.view = FetchView
	m.progress = pipeline.ProgressUpdate{Phase: pipeline.PublishPhase, Message: "Publishing card..."}
	return func() tea.Msg {
		result, err := m.publish(m.ctx, m.playlist, m.cardName)
		return publishCompleteMsg{result: result, err: err}
	}
}

func (m *Model) renderSongList() string {
	status := ""
	if m.searching {
		status = styles.help.Render("searching...")
	} else if m.err != nil {
		status = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.skip, m.keys.fetch, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", m.songList.View(), status, helpView)
}

func (m *Model) renderCandidates() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.skip, m.keys.retry, m.keys.back}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.candList.View(), helpView)
}

func (m *Model) renderFetch() string {
	title := styles.title.Render("Downloading Audio")

	var phase string
	switch m.progress.Phase {
	case pipeline.DownloadPhase:
		phase = fmt.Sprintf("Downloading (%d/%d)", m.progress.Step, m.progress.Total)
	case pipeline.PublishPhase:
		phase = "Publishing card..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

// Result returns the publish outcome, or nil when no card was created.
func (m *Model) Result() *cardapi.PublishResult {
	return m.result
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.quit}
	if m.canPublish() {
		helpKeys = append([]key.Binding{m.keys.publish}, helpKeys...)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil && m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Failed: %v", m.err)), helpView)
	}

	// a partial publish still produced a card; show it alongside the exclusions
	if m.result != nil {
		title := styles.ok.Render("✓ Card Published!")
		info := fmt.Sprintf("\nCard: %s\nTracks: %d", m.result.CardID, len(m.result.Uploaded))
		var excluded string
		if len(m.result.Excluded) > 0 {
			excluded = "\n\n" + styles.warn.Render(fmt.Sprintf("%d tracks excluded:", len(m.result.Excluded)))
			for _, track := range m.result.Excluded {
				excluded += fmt.Sprintf("\n  • %d. %s (%s)", track.Ordinal, track.Title, track.Reason)
			}
		}
		return fmt.Sprintf("%s%s%s\n\n%s", title, info, excluded, helpView)
	}

	title := styles.ok.Render("✓ Download Complete")
	info := fmt.Sprintf("\nDownloaded %d of %d songs", m.fetched, len(m.playlist.Items))
	return fmt.Sprintf("%s%s\n\n%s", title, info, helpView)
}
