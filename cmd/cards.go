package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"mixcard/internal/shared"
)

// CardsList lists the account's cards.
func (r *Runner) CardsList(ctx context.Context, cmd *cli.Command) error {
	cards, err := r.cardsClient().ListCards(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(cards, true)
	}

	if len(cards) == 0 {
		return r.writePlain("No cards on this account.\n")
	}

	r.writePlain("Cards (%d):\n", len(cards))
	for _, card := range cards {
		r.writePlain("  %s  %s\n", card.CardID, card.Title)
	}
	return nil
}

// CardsShow prints one card's chapters.
func (r *Runner) CardsShow(ctx context.Context, cmd *cli.Command) error {
	cardID := cmd.StringArg("id")
	if cardID == "" {
		return fmt.Errorf("%w: card id is required", shared.ErrInvalidInput)
	}

	card, err := r.cardsClient().GetCard(ctx, cardID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(card, true)
	}

	r.writePlainHeader(card.Title)
	r.writePlain("ID: %s\n", card.CardID)
	r.writePlain("Chapters: %d\n\n", len(card.Content.Chapters))
	for _, chapter := range card.Content.Chapters {
		duration := 0
		for _, track := range chapter.Tracks {
			duration += track.Duration
		}
		r.writePlain("  %s. %s [%d:%02d]\n", chapter.OverlayLabel, chapter.Title, duration/60, duration%60)
	}
	return nil
}
