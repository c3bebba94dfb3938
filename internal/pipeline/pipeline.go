// package pipeline implements the phase surface the CLI and web wizard both
// drive: build a playlist from raw titles, shuffle and cap it, then advance
// each item through search, confirmation, and download.
//
// Long-running batch operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mixcard/internal/models"
	"mixcard/internal/providers"
	"mixcard/internal/shared"
)

// DefaultCap bounds a card's track count when the caller does not override it.
const DefaultCap = 12

// MaxInputTitles bounds the raw title list accepted by Build. A paste of a
// whole library is a mistake, not a playlist.
const MaxInputTitles = 500

// Pipeline advances SongItems through the phase state machine using a single
// configured provider. It holds no per-run state; the playlist is the state.
type Pipeline struct {
	provider  providers.Provider
	outputDir string
	logger    *log.Logger

	// Rand drives the shuffle permutation. Overridable in tests.
	Rand *rand.Rand
}

// New creates a Pipeline around the given provider and output directory.
func New(provider providers.Provider, outputDir string, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		provider:  provider,
		outputDir: outputDir,
		logger:    logger,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Provider returns the source provider the pipeline was built with.
func (p *Pipeline) Provider() providers.Provider { return p.provider }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (p *Pipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Build parses raw title lines into a playlist of Pending items.
//
// Blank lines are dropped; ordinals stay unassigned until ShuffleAndCap
// fixes membership and order.
func (p *Pipeline) Build(rawTitles []string) (*models.Playlist, error) {
	items := make([]*models.SongItem, 0, len(rawTitles))
	for _, raw := range rawTitles {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		items = append(items, &models.SongItem{
			Request: models.NewSongRequest(raw),
			State:   models.StatePending,
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no song titles provided", shared.ErrInvalidInput)
	}
	if len(items) > MaxInputTitles {
		return nil, fmt.Errorf("%w: %d songs exceeds the %d title limit", shared.ErrInvalidInput, len(items), MaxInputTitles)
	}

	return &models.Playlist{
		Items:   items,
		Cap:     DefaultCap,
		Shuffle: true,
	}, nil
}

// ShuffleAndCap derives the working playlist from a built one: a uniform
// permutation (Fisher–Yates) when shuffle is set, truncated to cap, with
// ordinals assigned once. A non-positive cap is invalid input; callers that
// want the default pass DefaultCap explicitly.
//
// The input playlist is not mutated, so re-invocation ("reshuffle") starts
// from full membership again and discards prior candidates and selections.
func (p *Pipeline) ShuffleAndCap(pl *models.Playlist, cap int, shuffle bool) (*models.Playlist, error) {
	if cap <= 0 {
		return nil, fmt.Errorf("%w: cap must be positive, got %d", shared.ErrInvalidInput, cap)
	}

	order := make([]int, len(pl.Items))
	for i := range order {
		order[i] = i
	}
	if shuffle {
		p.Rand.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	if cap < len(order) {
		order = order[:cap]
	}

	items := make([]*models.SongItem, len(order))
	for ordinal, idx := range order {
		items[ordinal] = &models.SongItem{
			Request: pl.Items[idx].Request,
			Ordinal: ordinal + 1,
			State:   models.StatePending,
		}
	}

	p.logger.Debug("playlist prepared", "songs", len(items), "shuffled", shuffle)

	return &models.Playlist{
		Items:   items,
		Cap:     cap,
		Shuffle: shuffle,
		Name:    pl.Name,
	}, nil
}

// AdvanceSearch runs the provider search for one item and moves it to
// Searched. queryOverride replaces the item's own query for user-triggered
// re-search; re-searching invalidates any previously fetched file.
//
// A provider transport failure moves the item to Failed (retryable). An
// empty candidate list is not an error: the item lands in Searched with no
// candidates and the caller decides whether to re-search or skip.
func (p *Pipeline) AdvanceSearch(ctx context.Context, item *models.SongItem, queryOverride string) error {
	if !item.State.CanTransition(models.StateSearched) {
		return fmt.Errorf("%w: cannot search from %s", shared.ErrInvalidTransition, item.State)
	}

	if item.FilePath != "" {
		os.Remove(item.FilePath)
		item.FilePath = ""
	}

	query := item.Request.Query()
	artistHint := item.Request.Artist
	if queryOverride != "" {
		query = queryOverride
		artistHint = ""
	}

	prev := item.State
	candidates, err := p.provider.Search(ctx, query, artistHint)
	if err != nil {
		item.State = models.StateFailed
		item.ErrorDetail = err.Error()
		item.RetryState = prev
		p.logger.Warn("search failed", "query", query, "err", err)
		return err
	}

	item.Candidates = candidates
	item.Selected = nil
	item.State = models.StateSearched
	item.ErrorDetail = ""
	item.RetryState = ""
	return nil
}

// Confirm selects the idx-th candidate and moves the item to Confirmed.
func (p *Pipeline) Confirm(item *models.SongItem, idx int) error {
	if !item.State.CanTransition(models.StateConfirmed) {
		return fmt.Errorf("%w: cannot confirm from %s", shared.ErrInvalidTransition, item.State)
	}
	if idx < 0 || idx >= len(item.Candidates) {
		return fmt.Errorf("%w: candidate index %d out of range", shared.ErrInvalidInput, idx)
	}

	item.Selected = &item.Candidates[idx]
	item.State = models.StateConfirmed
	item.ErrorDetail = ""
	item.RetryState = ""
	return nil
}

// Skip moves the item to the terminal Skipped state.
func (p *Pipeline) Skip(item *models.SongItem) error {
	if !item.State.CanTransition(models.StateSkipped) {
		return fmt.Errorf("%w: cannot skip from %s", shared.ErrInvalidTransition, item.State)
	}
	item.State = models.StateSkipped
	return nil
}

// AdvanceFetch downloads the item's selected candidate and moves it to
// Fetched. A failure moves the item to Failed with the error detail retained
// and the Confirmed state recorded for retry.
func (p *Pipeline) AdvanceFetch(ctx context.Context, item *models.SongItem) error {
	if !item.State.CanTransition(models.StateFetched) {
		return fmt.Errorf("%w: cannot fetch from %s", shared.ErrInvalidTransition, item.State)
	}
	if item.Selected == nil {
		return fmt.Errorf("%w: no candidate selected", shared.ErrInvalidInput)
	}

	prev := item.State
	path, err := p.provider.Fetch(ctx, *item.Selected, p.outputDir)
	if err != nil {
		item.State = models.StateFailed
		item.ErrorDetail = err.Error()
		item.RetryState = prev
		p.logger.Warn("download failed", "song", item.Selected.Label(), "err", err)
		return err
	}

	item.FilePath = path
	item.State = models.StateFetched
	item.ErrorDetail = ""
	item.RetryState = ""
	return nil
}

// RetryItem re-enters the state the item held before its failure, clearing
// the error detail so the failed phase step can run again.
func (p *Pipeline) RetryItem(item *models.SongItem) error {
	if item.State != models.StateFailed {
		return fmt.Errorf("%w: cannot retry from %s", shared.ErrInvalidTransition, item.State)
	}

	target := item.RetryState
	if target == "" || !models.StateFailed.CanTransition(target) {
		if item.Selected != nil {
			target = models.StateConfirmed
		} else {
			target = models.StatePending
		}
	}

	item.State = target
	item.ErrorDetail = ""
	item.RetryState = ""
	return nil
}

// IsReadyToPublish reports whether every item has left the pipeline (Fetched
// or Skipped). It says nothing about whether anything was fetched; publish
// itself rejects an empty fetched set.
func (p *Pipeline) IsReadyToPublish(pl *models.Playlist) bool {
	for _, item := range pl.Items {
		if !item.State.Terminal() {
			return false
		}
	}
	return true
}

// AutoMatch searches every Pending item and confirms its top candidate,
// skipping items with no match. Used by the non-interactive CLI path.
func (p *Pipeline) AutoMatch(ctx context.Context, pl *models.Playlist, progress chan<- ProgressUpdate) error {
	total := len(pl.Items)
	for i, item := range pl.Items {
		if item.State != models.StatePending {
			continue
		}

		p.sendProgress(progress, searchingUpdate(i+1, total, item))

		if err := p.AdvanceSearch(ctx, item, ""); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.sendProgress(progress, noMatchUpdate(i+1, total, item))
			continue
		}

		if len(item.Candidates) == 0 {
			p.Skip(item)
			p.sendProgress(progress, noMatchUpdate(i+1, total, item))
			continue
		}

		if err := p.Confirm(item, 0); err != nil {
			return err
		}
		p.sendProgress(progress, matchedUpdate(i+1, total, item))
	}
	return nil
}

// FetchAll downloads every Confirmed item in ordinal order, capturing
// per-item failures without aborting the batch. Returns the count of items
// fetched during this call.
func (p *Pipeline) FetchAll(ctx context.Context, pl *models.Playlist, progress chan<- ProgressUpdate) (int, error) {
	total := 0
	for _, item := range pl.Items {
		if item.State == models.StateConfirmed {
			total++
		}
	}

	fetched := 0
	step := 0
	for _, item := range pl.Items {
		if item.State != models.StateConfirmed {
			continue
		}
		step++

		p.sendProgress(progress, fetchingUpdate(step, total, item))

		if err := p.AdvanceFetch(ctx, item); err != nil {
			if ctx.Err() != nil {
				return fetched, ctx.Err()
			}
			p.sendProgress(progress, fetchFailedUpdate(step, total, item, err))
			continue
		}

		fetched++
		p.sendProgress(progress, fetchedUpdate(step, total, item))
	}

	return fetched, nil
}
