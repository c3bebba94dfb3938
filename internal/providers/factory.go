package providers

import (
	"fmt"

	"mixcard/internal/shared"
)

// FromConfig constructs the configured provider variant.
func FromConfig(cfg *shared.Config) (Provider, error) {
	switch cfg.Provider.Kind {
	case "", "stream":
		return NewStreamProvider(StreamOpts{
			SearchURL:   cfg.Provider.Stream.SearchURL,
			DownloadURL: cfg.Provider.Stream.DownloadURL,
			APIKey:      cfg.Provider.Stream.APIKey,
			RateLimit:   cfg.Provider.Stream.RateLimit,
		}), nil
	case "library":
		return NewLibraryProvider(LibraryOpts{
			URL:       cfg.Provider.Library.URL,
			Token:     cfg.Provider.Library.Token,
			Section:   cfg.Provider.Library.Section,
			RateLimit: cfg.Provider.Library.RateLimit,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider kind %q", shared.ErrInvalidConfig, cfg.Provider.Kind)
	}
}
