// Package main is the entry point for the blog platform API server.
//
// main stays minimal:
//  1. Load configuration (defaults, optional YAML file, env vars)
//  2. Build the logger
//  3. Hand both to server.New and start serving
//
// Everything else lives in internal/.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml or ./configs/config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if !cfg.Google.Enabled() {
		logger.Info("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; Google sign-in is disabled")
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger builds a text (development) or JSON (production) slog logger.
//
// Log levels from least to most severe: Debug, Info, Warn, Error.
// Debug also turns on the pgx query tracer.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
