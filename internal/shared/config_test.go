package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Storage.TasksFile != "./temp/tasks.json" {
			t.Errorf("expected tasks file ./temp/tasks.json, got %s", config.Storage.TasksFile)
		}

		if config.Tools.YtDlp != "yt-dlp" {
			t.Errorf("expected ytdlp binary yt-dlp, got %s", config.Tools.YtDlp)
		}

		if config.Resolver.MaxBytes != 2000000 {
			t.Errorf("expected resolver max_bytes 2000000, got %d", config.Resolver.MaxBytes)
		}

		if config.Resolver.MaxDepth != 1 {
			t.Errorf("expected resolver max_depth 1, got %d", config.Resolver.MaxDepth)
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
		if config.Storage.TempDir != defaultConfig.Storage.TempDir {
			t.Errorf("created config temp dir doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
host = "127.0.0.1"
port = 9999
allowed_origins = "http://localhost:5173"

[storage]
temp_dir = "/var/lib/scribe"
tasks_file = "/var/lib/scribe/tasks.json"

[tools]
ytdlp = "/usr/local/bin/yt-dlp"
ffmpeg = "ffmpeg"
ffprobe = "ffprobe"

[resolver]
max_bytes = 500000
timeout_seconds = 5
max_depth = 2
rate_limit = 1.0

[services.transcriber]
base_url = "http://stt.internal"
api_key = "secret"
model = "whisper-1"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 9999 {
			t.Errorf("expected port 9999, got %d", config.Server.Port)
		}
		if config.Resolver.Timeout().Seconds() != 5 {
			t.Errorf("expected 5s resolver timeout, got %v", config.Resolver.Timeout())
		}
		if config.Services.Transcriber.BaseURL != "http://stt.internal" {
			t.Errorf("unexpected transcriber base url: %s", config.Services.Transcriber.BaseURL)
		}
	})

	t.Run("LoadConfigMissing", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("loading a missing config should fail")
		}
	})
}
