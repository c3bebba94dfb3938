package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"mixcard/internal/cardapi"
	"mixcard/internal/formatter"
	"mixcard/internal/listgen"
	"mixcard/internal/models"
	"mixcard/internal/pipeline"
	"mixcard/internal/shared"
	"mixcard/internal/ui"
)

// Run drives the full pipeline: load titles, build and shuffle the playlist,
// match each song against the provider, download the audio, and optionally
// publish the card.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	songfile := cmd.StringArg("songfile")
	if songfile == "" {
		songfile = "songs.txt"
	}

	titles, err := loadTitles(songfile)
	if err != nil {
		return err
	}

	provider, err := r.resolveProvider(cmd.String("provider"))
	if err != nil {
		return err
	}

	outputDir := cmd.String("output")
	if outputDir == "" {
		outputDir = r.config.Pipeline.OutputDir
	}
	if outputDir == "" {
		outputDir = "downloads"
	}

	cardName := cmd.String("card-name")
	if cardName == "" {
		cardName = strings.TrimSuffix(filepath.Base(songfile), filepath.Ext(songfile))
	}

	pipe := pipeline.New(provider, outputDir, r.logger)

	built, err := pipe.Build(titles)
	if err != nil {
		return err
	}
	built.Name = cardName

	// 0 means unset; a negative flag value is rejected by ShuffleAndCap.
	maxSongs := int(cmd.Int("max-songs"))
	if maxSongs == 0 {
		maxSongs = r.config.Pipeline.MaxSongs
	}
	if maxSongs == 0 {
		maxSongs = pipeline.DefaultCap
	}
	playlist, err := pipe.ShuffleAndCap(built, maxSongs, !cmd.Bool("no-shuffle"))
	if err != nil {
		return err
	}
	playlist.Name = cardName

	r.logger.Info("playlist built", "songs", len(playlist.Items), "provider", provider.Name(), "output", outputDir)
	r.writePlain("%s", formatter.ExportToText(playlist))
	r.writePlain("\n")

	var publish ui.PublishFunc
	if cmd.Bool("publish") {
		sequencer := cardapi.NewSequencer(r.cardsClient(), r.logger)
		publish = sequencer.Publish
	}

	reports := reportPaths{manifest: cmd.String("manifest"), csv: cmd.String("csv")}
	if cmd.Bool("yes") {
		return r.runAutomatic(ctx, pipe, playlist, cardName, publish, reports, outputDir)
	}
	return r.runInteractive(ctx, pipe, playlist, cardName, publish, reports, outputDir)
}

// loadTitles reads song titles from a file, or stdin when the path is "-".
func loadTitles(songfile string) ([]string, error) {
	if songfile == "-" {
		titles, err := listgen.ReadTitles(os.Stdin)
		if err != nil {
			return nil, err
		}
		if len(titles) == 0 {
			return nil, fmt.Errorf("%w: no songs on stdin", shared.ErrInvalidInput)
		}
		return titles, nil
	}
	return listgen.LoadTitles(songfile)
}

// reportPaths carries the optional per-run report destinations.
type reportPaths struct {
	manifest string
	csv      string
}

// runAutomatic accepts the top match for every song, then downloads and
// optionally publishes without prompting.
func (r *Runner) runAutomatic(ctx context.Context, pipe *pipeline.Pipeline, playlist *models.Playlist, cardName string, publish ui.PublishFunc, reports reportPaths, outputDir string) error {
	progressCh := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case pipeline.SearchPhase:
				r.writePlain("🔍 %s\n", update.Message)
			case pipeline.DownloadPhase:
				r.writePlain("📥 %s\n", update.Message)
			}
		}
	}()

	matchErr := pipe.AutoMatch(ctx, playlist, progressCh)
	var fetched int
	var fetchErr error
	if matchErr == nil {
		fetched, fetchErr = pipe.FetchAll(ctx, playlist, progressCh)
	}
	close(progressCh)
	<-done

	if matchErr != nil {
		return matchErr
	}
	if fetchErr != nil {
		return fetchErr
	}

	var result *cardapi.PublishResult
	if publish != nil {
		if !pipe.IsReadyToPublish(playlist) || len(playlist.FetchedItems()) == 0 {
			r.writePlain("\nNothing to publish; skipping.\n")
		} else {
			r.writePlain("\n📝 Publishing '%s'...\n", cardName)
			published, err := publish(ctx, playlist, cardName)
			if err != nil && !errors.Is(err, shared.ErrPublishPartial) {
				return err
			}
			result = published
		}
	}

	return r.finishRun(playlist, result, fetched, reports, outputDir)
}

// runInteractive hands the match phase to the TUI picker.
func (r *Runner) runInteractive(ctx context.Context, pipe *pipeline.Pipeline, playlist *models.Playlist, cardName string, publish ui.PublishFunc, reports reportPaths, outputDir string) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(filepath.Join(outputDir, "mixcard.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, pipe, playlist, cardName, publish)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	fetched := len(playlist.FetchedItems())
	return r.finishRun(playlist, model.Result(), fetched, reports, outputDir)
}

// finishRun prints the summary and writes the run reports.
func (r *Runner) finishRun(playlist *models.Playlist, result *cardapi.PublishResult, fetched int, reports reportPaths, outputDir string) error {
	r.writePlain("\n")
	r.writePlainHeader("Run Complete")
	r.writePlain("Downloaded: %d/%d songs\n", fetched, len(playlist.Items))

	skipped := 0
	var failed []*models.SongItem
	for _, item := range playlist.Items {
		switch item.State {
		case models.StateSkipped:
			skipped++
		case models.StateFailed:
			failed = append(failed, item)
		}
	}
	if skipped > 0 {
		r.writePlain("Skipped: %d songs\n", skipped)
	}
	if len(failed) > 0 {
		r.writePlain("\nFailed:\n")
		for _, item := range failed {
			r.writePlain("  - %s (%s)\n", item.Request.Raw, item.ErrorDetail)
		}
	}

	if result != nil {
		r.writePlain("\nCard: %s (%d tracks)\n", result.CardID, len(result.Uploaded))
		if len(result.Excluded) > 0 {
			r.writePlain("Excluded from card:\n")
			for _, track := range result.Excluded {
				r.writePlain("  - %d. %s (%s)\n", track.Ordinal, track.Title, track.Reason)
			}
		}
	}

	if reports.csv != "" {
		data, err := formatter.ExportToCSV(playlist)
		if err != nil {
			r.logger.Warn("failed to render CSV", "error", err)
		} else if err := os.WriteFile(reports.csv, data, 0644); err != nil {
			r.logger.Warn("failed to write CSV", "error", err)
		} else {
			r.writePlain("\nCSV: %s\n", reports.csv)
		}
	}

	manifestPath := reports.manifest
	if manifestPath == "" {
		manifestPath = filepath.Join(outputDir, "manifest.json")
	}
	written, err := formatter.WriteRunManifest(playlist, result, manifestPath)
	if err != nil {
		r.logger.Warn("failed to write manifest", "error", err)
		return nil
	}
	r.writePlain("\nManifest: %s\n", written)
	return nil
}
