package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/scribe/internal/media"
	"github.com/desertthunder/scribe/internal/podcast"
	"github.com/desertthunder/scribe/internal/server"
	"github.com/desertthunder/scribe/internal/shared"
)

// Serve runs the HTTP service until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}

	orch, err := r.buildOrchestrator(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(config, orch, r.logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	// Let in-flight pipelines drive their records to a terminal state before
	// the process exits.
	r.logger.Info("waiting for active tasks")
	orch.Wait()
	return nil
}

// Classify prints the media classification of a URL.
func (r *Runner) Classify(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	source, err := media.Classify(rawURL)
	if err != nil {
		return err
	}
	return r.writeJSON(source, cmd.Bool("pretty"))
}

// Resolve resolves a podcast-shaped URL to its playable episode.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd)
	timeout := config.Resolver.Timeout()
	if secs := cmd.Int("timeout"); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	resolver := podcast.NewResolver(r.httpClient, r.logger, podcast.Options{
		MaxBytes:  config.Resolver.MaxBytes,
		Timeout:   timeout,
		MaxDepth:  int(cmd.Int("depth")),
		RateLimit: config.Resolver.RateLimit,
	})

	episode, err := resolver.Resolve(ctx, rawURL)
	if err != nil {
		return err
	}
	return r.writeJSON(episode, cmd.Bool("pretty"))
}

// ConfigInit writes the embedded config template to disk.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return nil
}
