package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"mixcard/internal/shared"
)

func main() {
	// .env is optional; flags and config.toml take precedence
	_ = godotenv.Load()

	logger := shared.NewLogger(nil)
	if lvl := os.Getenv("MIXCARD_LOG_LEVEL"); lvl != "" {
		parsed, err := log.ParseLevel(lvl)
		if err != nil {
			logger.Warn("invalid MIXCARD_LOG_LEVEL, keeping default", "value", lvl)
		} else {
			shared.SetLogLevel(logger, parsed)
		}
	}

	config := shared.DefaultConfig()
	configPath := "config.toml"
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}
	applyEnvOverrides(config)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "mixcard",
		Usage:    "Build a playlist, download the audio, and publish it to a player card",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// applyEnvOverrides lets secrets come from the environment instead of
// config.toml.
func applyEnvOverrides(config *shared.Config) {
	if v := os.Getenv("MIXCARD_CLIENT_ID"); v != "" {
		config.Destination.ClientID = v
	}
	if v := os.Getenv("MIXCARD_STREAM_API_KEY"); v != "" {
		config.Provider.Stream.APIKey = v
	}
	if v := os.Getenv("MIXCARD_LIBRARY_TOKEN"); v != "" {
		config.Provider.Library.Token = v
	}
}
