package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/scribe/internal/audio"
	"github.com/desertthunder/scribe/internal/podcast"
	"github.com/desertthunder/scribe/internal/services"
	"github.com/desertthunder/scribe/internal/shared"
	"github.com/desertthunder/scribe/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, classifyCommand, resolveCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the config file named by the command's --config flag,
// falling back to defaults when it is absent or unreadable.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	path := cmd.String("config")
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if loaded, err := shared.LoadConfig(path); err == nil {
			config = loaded
		} else {
			r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		}
	}
	applyEnv(config)
	return config
}

// applyEnv lets deployment environments override service credentials without
// touching the config file.
func applyEnv(config *shared.Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"SCRIBE_TRANSCRIBER_BASE_URL", &config.Services.Transcriber.BaseURL},
		{"SCRIBE_TRANSCRIBER_API_KEY", &config.Services.Transcriber.APIKey},
		{"SCRIBE_SUMMARIZER_BASE_URL", &config.Services.Summarizer.BaseURL},
		{"SCRIBE_SUMMARIZER_API_KEY", &config.Services.Summarizer.APIKey},
		{"SCRIBE_TRANSLATOR_BASE_URL", &config.Services.Translator.BaseURL},
		{"SCRIBE_TRANSLATOR_API_KEY", &config.Services.Translator.APIKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// buildOrchestrator wires the full pipeline from configuration.
func (r *Runner) buildOrchestrator(config *shared.Config) (*tasks.Orchestrator, error) {
	if err := os.MkdirAll(config.Storage.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	tasksFile := config.Storage.TasksFile
	if tasksFile == "" {
		tasksFile = filepath.Join(config.Storage.TempDir, "tasks.json")
	}

	resolver := podcast.NewResolver(r.httpClient, r.logger, podcast.Options{
		MaxBytes:  config.Resolver.MaxBytes,
		Timeout:   config.Resolver.Timeout(),
		MaxDepth:  config.Resolver.MaxDepth,
		RateLimit: config.Resolver.RateLimit,
	})

	return tasks.NewOrchestrator(tasks.Deps{
		Store:       tasks.NewStore(tasksFile, r.logger),
		Hub:         tasks.NewHub(),
		Resolver:    resolver,
		Acquirer:    audio.NewAcquirer(config.Tools, r.logger),
		Transcriber: services.NewHTTPTranscriber(config.Services.Transcriber, r.httpClient),
		Summarizer:  services.NewHTTPSummarizer(config.Services.Summarizer, r.httpClient),
		Translator:  services.NewHTTPTranslator(config.Services.Translator, r.httpClient),
		TempDir:     config.Storage.TempDir,
		Logger:      r.logger,
	}), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}
