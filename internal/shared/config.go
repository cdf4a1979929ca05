package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Tools    ToolsConfig    `toml:"tools"`
	Resolver ResolverConfig `toml:"resolver"`
	Services ServicesConfig `toml:"services"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	AllowedOrigins string `toml:"allowed_origins"`
}

// StorageConfig contains on-disk layout settings: the artifact directory and
// the task store document.
type StorageConfig struct {
	TempDir   string `toml:"temp_dir"`
	TasksFile string `toml:"tasks_file"`
}

// ToolsConfig contains paths to the external media tools.
type ToolsConfig struct {
	YtDlp   string `toml:"ytdlp"`
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// ResolverConfig contains limits for podcast link resolution.
type ResolverConfig struct {
	MaxBytes       int64   `toml:"max_bytes"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxDepth       int     `toml:"max_depth"`
	RateLimit      float64 `toml:"rate_limit"`
}

// Timeout returns the configured fetch timeout as a [time.Duration].
func (r ResolverConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ServicesConfig groups the external collaborator endpoints.
type ServicesConfig struct {
	Transcriber ServiceConfig `toml:"transcriber"`
	Summarizer  ServiceConfig `toml:"summarizer"`
	Translator  ServiceConfig `toml:"translator"`
}

// ServiceConfig describes one HTTP collaborator.
type ServiceConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
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
