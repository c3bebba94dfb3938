package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"

	"mixcard/internal/cardapi"
	"mixcard/internal/pipeline"
	"mixcard/internal/repositories"
	"mixcard/internal/server"
	"mixcard/internal/shared"
)

// Serve starts the web wizard HTTP server.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := int(cmd.Int("port"))
	if port == 0 {
		port = r.config.Server.Port
	}
	if port == 0 {
		port = 8080
	}

	provider, err := r.resolveProvider("")
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := repositories.Bootstrap(db); err != nil {
		return err
	}

	outputDir := r.config.Pipeline.OutputDir
	if outputDir == "" {
		outputDir = "downloads"
	}
	pipe := pipeline.New(provider, outputDir, r.logger)
	sessions := repositories.NewSessionRepository(db)
	sequencer := cardapi.NewSequencer(r.cardsClient(), r.logger)

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	wizardLogger := shared.WithLogger(r.logger, "component", "wizard")
	router.Handler(server.NewWizardHandler(pipe, sessions, sequencer, wizardLogger))

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	r.logger.Info("wizard listening", "addr", addr)
	r.writePlain("Wizard running at http://%s\n", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
