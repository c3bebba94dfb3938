package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Provider    ProviderConfig    `toml:"provider"`
	Destination DestinationConfig `toml:"destination"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// PipelineConfig contains defaults for a pipeline run.
type PipelineConfig struct {
	OutputDir string `toml:"output_dir"`
	MaxSongs  int    `toml:"max_songs"`
	Shuffle   bool   `toml:"shuffle"`
}

// ProviderConfig selects and configures the audio source provider.
type ProviderConfig struct {
	Kind    string              `toml:"kind"` // "stream" or "library"
	Stream  StreamSourceConfig  `toml:"stream"`
	Library LibrarySourceConfig `toml:"library"`
}

// StreamSourceConfig configures the streaming-service backed provider
// (search proxy plus download sidecar).
type StreamSourceConfig struct {
	SearchURL   string  `toml:"search_url"`
	DownloadURL string  `toml:"download_url"`
	APIKey      string  `toml:"api_key"`
	RateLimit   float64 `toml:"rate_limit"`
}

// LibrarySourceConfig configures the local media server backed provider.
type LibrarySourceConfig struct {
	URL       string  `toml:"url"`
	Token     string  `toml:"token"`
	Section   string  `toml:"section"`
	RateLimit float64 `toml:"rate_limit"`
}

// DestinationConfig contains the card service credentials and endpoints.
type DestinationConfig struct {
	ClientID  string `toml:"client_id"`
	AuthURL   string `toml:"auth_url"`
	APIURL    string `toml:"api_url"`
	TokenPath string `toml:"token_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the web wizard.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultTokenPath returns the destination token store path, falling back to
// ~/.mixcard/tokens.json when the config leaves it empty.
func (c *Config) DefaultTokenPath() string {
	if c.Destination.TokenPath != "" {
		return c.Destination.TokenPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "tokens.json"
	}
	return filepath.Join(home, ".mixcard", "tokens.json")
}
