package main

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mixcard/internal/models"
	"mixcard/internal/shared"
	tu "mixcard/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			provider := &tu.MockProvider{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Provider:   provider,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.provider != provider {
				t.Error("expected provider to be set")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with nil store builds one from config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.store == nil {
				t.Error("expected default token store to be set")
			}
		})
	})

	t.Run("register returns all commands", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "run", "serve", "cards"} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})
}

func TestResolveProvider(t *testing.T) {
	t.Run("returns injected provider", func(t *testing.T) {
		provider := &tu.MockProvider{}
		runner := NewRunner(RunnerOpts{Provider: provider})

		got, err := runner.resolveProvider("")
		if err != nil {
			t.Fatal(err)
		}
		if got != provider {
			t.Error("expected the injected provider back")
		}
	})

	t.Run("builds stream provider by default", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		got, err := runner.resolveProvider("")
		if err != nil {
			t.Fatalf("resolveProvider() error: %v", err)
		}
		if got.Name() != "Stream" {
			t.Errorf("provider = %s, want Stream", got.Name())
		}
	})

	t.Run("override selects library provider", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Provider.Library.URL = "http://localhost:32400"
		config.Provider.Library.Token = "tok"
		runner := NewRunner(RunnerOpts{Config: config})

		got, err := runner.resolveProvider("library")
		if err != nil {
			t.Fatalf("resolveProvider() error: %v", err)
		}
		if got.Name() != "Library" {
			t.Errorf("provider = %s, want Library", got.Name())
		}
	})

	t.Run("unknown kind fails", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		if _, err := runner.resolveProvider("cassette"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("writeJSON pretty", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeJSON(map[string]string{"name": "Road Trip"}, true); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(output.String(), "\"name\": \"Road Trip\"") {
			t.Errorf("output = %s", output.String())
		}
		if !strings.HasSuffix(output.String(), "\n") {
			t.Error("output missing trailing newline")
		}
	})

	t.Run("writePlain formats", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s\n", "world"); err != nil {
			t.Fatal(err)
		}
		if output.String() != "hello world\n" {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("write failure surfaces", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

		if err := runner.writePlain("boom"); err == nil {
			t.Error("expected write error")
		}
		if err := runner.writeJSON("x", false); err == nil {
			t.Error("expected write error")
		}
	})
}

func TestFinishRunWritesCSV(t *testing.T) {
	dir := t.TempDir()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output})

	pl := &models.Playlist{Items: []*models.SongItem{{
		Request:  models.NewSongRequest("Yesterday"),
		Ordinal:  1,
		State:    models.StateFetched,
		FilePath: filepath.Join(dir, "Yesterday.mp3"),
	}}}

	csvPath := filepath.Join(dir, "run.csv")
	if err := runner.finishRun(pl, nil, 1, reportPaths{csv: csvPath}, dir); err != nil {
		t.Fatalf("finishRun() error: %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("csv not written: %v", err)
	}
	if !strings.Contains(string(data), "Yesterday") {
		t.Errorf("csv = %s", data)
	}
	if !strings.Contains(output.String(), csvPath) {
		t.Errorf("summary missing csv path: %s", output.String())
	}
}

func TestLoadTitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songs.txt")
	if err := os.WriteFile(path, []byte("# mix\nYesterday - The Beatles\n"), 0644); err != nil {
		t.Fatal(err)
	}

	titles, err := loadTitles(path)
	if err != nil {
		t.Fatalf("loadTitles() error: %v", err)
	}
	if len(titles) != 1 || titles[0] != "Yesterday - The Beatles" {
		t.Errorf("titles = %v", titles)
	}
}
