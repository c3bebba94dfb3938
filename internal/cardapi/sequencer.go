package cardapi

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"mixcard/internal/models"
	"mixcard/internal/shared"
)

// ExcludedTrack records a track that failed to upload during publish.
type ExcludedTrack struct {
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

// PublishResult is the outcome of a publish run. CardID is set whenever a
// card was created, including partial-success runs.
type PublishResult struct {
	CardID   string          `json:"cardId"`
	Uploaded []TrackRef      `json:"uploaded"`
	Excluded []ExcludedTrack `json:"excluded,omitempty"`
	IconID   string          `json:"iconId,omitempty"`
}

// Sequencer orchestrates the publish phase: credential check, icon
// resolution, per-track upload in ordinal order, and card assembly.
type Sequencer struct {
	client    *Client
	matcher   IconMatcher
	generator IconGenerator
	logger    *log.Logger

	// OnProgress, when set, receives per-step publish updates for display.
	OnProgress func(step, total int, message string)
}

// NewSequencer creates a Sequencer with the default icon strategies.
func NewSequencer(client *Client, logger *log.Logger) *Sequencer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Sequencer{
		client:    client,
		matcher:   KeywordMatcher{},
		generator: PixelGenerator{},
		logger:    logger,
	}
}

// SetIconStrategies replaces the catalog matcher and generator. A nil value
// disables that strategy.
func (s *Sequencer) SetIconStrategies(matcher IconMatcher, generator IconGenerator) {
	s.matcher = matcher
	s.generator = generator
}

func (s *Sequencer) progress(step, total int, message string) {
	if s.OnProgress != nil {
		s.OnProgress(step, total, message)
	}
}

// Publish uploads every fetched track in ordinal order and assembles the
// card. The credential is validated before the first upload so an expired
// session fails fast. Individual upload failures exclude the track but do
// not abort the run; when any track was excluded the created card is still
// returned alongside ErrPublishPartial.
func (s *Sequencer) Publish(ctx context.Context, pl *models.Playlist, name string) (*PublishResult, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: card name required", shared.ErrInvalidInput)
	}

	items := pl.FetchedItems()
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no downloaded tracks to publish", shared.ErrNotReady)
	}
	for _, item := range pl.Items {
		if !item.State.Terminal() {
			return nil, fmt.Errorf("%w: %q is still %s", shared.ErrNotReady, item.Request.Raw, item.State)
		}
	}

	// Resolve the credential before any upload work begins.
	if _, err := s.client.tokens.Token(ctx); err != nil {
		return nil, err
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Selected.Label()
	}

	var iconID string
	icon := s.resolveIcon(ctx, titles, name)
	switch {
	case icon.Zero():
		s.logger.Warn("no icon resolved, card gets the service default")
	case len(icon.PNG) > 0:
		id, err := s.client.UploadIcon(ctx, icon.PNG)
		if err != nil {
			s.logger.Warn("icon upload failed", "err", err)
		} else {
			iconID = id
		}
	default:
		iconID = icon.MediaID
	}

	total := len(items) + 1 // +1 for card assembly
	result := &PublishResult{IconID: iconID}

	for i, item := range items {
		label := item.Selected.Label()
		s.progress(i+1, total, fmt.Sprintf("Uploading %s", label))

		ref, err := s.client.UploadTrack(ctx, item.FilePath, label)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("track upload failed", "song", label, "err", err)
			result.Excluded = append(result.Excluded, ExcludedTrack{
				Ordinal: item.Ordinal,
				Title:   label,
				Reason:  err.Error(),
			})
			continue
		}
		result.Uploaded = append(result.Uploaded, *ref)
	}

	if len(result.Uploaded) == 0 {
		return nil, fmt.Errorf("%w: every track upload failed", shared.ErrUploadFailed)
	}

	s.progress(total, total, "Creating card")
	card, err := s.client.CreateCard(ctx, name, result.Uploaded, iconID)
	if err != nil {
		return nil, err
	}
	result.CardID = card.CardID

	s.logger.Info("card published", "card", card.CardID, "tracks", len(result.Uploaded), "excluded", len(result.Excluded))

	if len(result.Excluded) > 0 {
		return result, fmt.Errorf("%w: %d of %d tracks excluded", shared.ErrPublishPartial, len(result.Excluded), len(items))
	}
	return result, nil
}

// resolveIcon tries the catalog matcher first, then falls back to generating
// PNG bytes. Every failure is non-fatal: a card without an icon is still a
// card, so the zero CardIcon is a valid outcome.
func (s *Sequencer) resolveIcon(ctx context.Context, titles []string, name string) models.CardIcon {
	if s.matcher != nil {
		icons, err := s.client.PublicIcons(ctx)
		if err != nil {
			s.logger.Warn("icon catalog unavailable", "err", err)
		} else if len(icons) > 0 {
			id, err := s.matcher.Match(ctx, icons, titles, name)
			if err != nil {
				s.logger.Warn("icon match failed", "err", err)
			} else if id != "" {
				return models.CardIcon{MediaID: id}
			}
		}
	}

	if s.generator != nil {
		pixels, err := s.generator.Generate(ctx, titles, name)
		if err != nil || len(pixels) == 0 {
			s.logger.Warn("icon generation failed", "err", err)
			return models.CardIcon{}
		}
		return models.CardIcon{PNG: pixels}
	}

	return models.CardIcon{}
}
