package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/scribe/internal/shared"
)

func main() {
	// Load .env in dev only. Production injects env vars through infra.
	if os.Getenv("APP_ENV") != "production" {
		godotenv.Load()
	}

	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "scribe",
		Usage:    "Transcribe, optimize, translate and summarize media from a URL",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
