package cardapi

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
)

// IconMatcher picks the catalog icon that best fits a card. Implementations
// may call external services; Match returning an empty mediaId means no
// suitable icon was found.
type IconMatcher interface {
	Match(ctx context.Context, icons []Icon, titles []string, cardName string) (string, error)
}

// IconGenerator produces custom 16x16 PNG pixel data for a card.
type IconGenerator interface {
	Generate(ctx context.Context, titles []string, cardName string) ([]byte, error)
}

// KeywordMatcher scores catalog icons by word overlap between the icon's
// title and tags and the card's name and song titles.
type KeywordMatcher struct{}

// fallbackTerms match generic music icons when nothing theme-specific scores.
var fallbackTerms = []string{"music", "note", "song"}

func (KeywordMatcher) Match(ctx context.Context, icons []Icon, titles []string, cardName string) (string, error) {
	terms := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(cardName)) {
		terms[w] = struct{}{}
	}
	for _, title := range titles {
		for _, w := range strings.Fields(strings.ToLower(title)) {
			if len(w) > 3 {
				terms[w] = struct{}{}
			}
		}
	}

	best := ""
	bestScore := 0
	fallback := ""
	for _, icon := range icons {
		words := strings.Fields(strings.ToLower(icon.Title))
		for _, tag := range icon.PublicTags {
			words = append(words, strings.ToLower(tag))
		}

		score := 0
		for _, w := range words {
			if _, ok := terms[w]; ok {
				score++
			}
			if fallback == "" {
				for _, t := range fallbackTerms {
					if strings.Contains(w, t) {
						fallback = icon.MediaID
						break
					}
				}
			}
		}
		if score > bestScore {
			best = icon.MediaID
			bestScore = score
		}
	}

	if best == "" {
		best = fallback
	}
	return best, nil
}

// IconSize is the display icon edge length in pixels.
const IconSize = 16

// PixelGenerator renders a deterministic 16x16 pixel-art icon: a
// horizontally symmetric pattern seeded from the card name and titles, in a
// bright two-color palette. The same card always gets the same icon.
type PixelGenerator struct{}

var iconPalette = []color.NRGBA{
	{R: 0xE7, G: 0x4C, B: 0x3C, A: 0xFF}, // red
	{R: 0x34, G: 0x98, B: 0xDB, A: 0xFF}, // blue
	{R: 0x2E, G: 0xCC, B: 0x71, A: 0xFF}, // green
	{R: 0xF1, G: 0xC4, B: 0x0F, A: 0xFF}, // yellow
	{R: 0x9B, G: 0x59, B: 0xB6, A: 0xFF}, // purple
	{R: 0xE6, G: 0x7E, B: 0x22, A: 0xFF}, // orange
}

func (PixelGenerator) Generate(ctx context.Context, titles []string, cardName string) ([]byte, error) {
	h := fnv.New64a()
	h.Write([]byte(cardName))
	for _, t := range titles {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	seed := h.Sum64()

	fg := iconPalette[seed%uint64(len(iconPalette))]
	bg := iconPalette[(seed/7)%uint64(len(iconPalette))]
	if fg == bg {
		bg = iconPalette[(seed/7+1)%uint64(len(iconPalette))]
	}

	img := image.NewNRGBA(image.Rect(0, 0, IconSize, IconSize))
	state := seed
	for y := 0; y < IconSize; y++ {
		for x := 0; x < IconSize/2; x++ {
			state = state*6364136223846793005 + 1442695040888963407
			c := bg
			if state>>33&1 == 1 {
				c = fg
			}
			img.SetNRGBA(x, y, c)
			img.SetNRGBA(IconSize-1-x, y, c) // mirror for symmetry
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
