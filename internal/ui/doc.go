// Package ui implements the interactive match picker using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for the match and download phases:
//  1. [SongListView] : Browse the shuffled playlist with per-song state
//  2. [CandidateView] : Pick one of the provider's candidates, skip, or re-search
//  3. [FetchView] : Monitor download and publish progress
//  4. [ResultView] : Display the published card or download summary
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Download progress flows through a channel from the pipeline, providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, f, p, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
