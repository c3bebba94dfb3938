package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Pipeline.MaxSongs != 12 {
			t.Errorf("expected max_songs 12, got %d", config.Pipeline.MaxSongs)
		}

		if !config.Pipeline.Shuffle {
			t.Error("expected shuffle enabled by default")
		}

		if config.Provider.Kind != "stream" {
			t.Errorf("expected provider kind stream, got %s", config.Provider.Kind)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Database.Path != "./mixcard.db" {
			t.Errorf("expected database path ./mixcard.db, got %s", config.Database.Path)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Pipeline.OutputDir != defaultConfig.Pipeline.OutputDir {
			t.Errorf("created config output dir doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[pipeline]
output_dir = "/tmp/music"
max_songs = 6
shuffle = false

[provider]
kind = "library"

[provider.library]
url = "http://plex.local:32400"
token = "abc123"
section = "Kids Music"

[destination]
client_id = "client-1"
token_path = "/custom/tokens.json"

[server]
host = "0.0.0.0"
port = 8080
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Pipeline.MaxSongs != 6 {
			t.Errorf("expected max_songs 6, got %d", config.Pipeline.MaxSongs)
		}

		if config.Provider.Kind != "library" {
			t.Errorf("expected provider kind library, got %s", config.Provider.Kind)
		}

		if config.Provider.Library.Section != "Kids Music" {
			t.Errorf("expected library section Kids Music, got %s", config.Provider.Library.Section)
		}

		if config.DefaultTokenPath() != "/custom/tokens.json" {
			t.Errorf("expected configured token path, got %s", config.DefaultTokenPath())
		}
	})

	t.Run("LoadConfigMissing", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}
