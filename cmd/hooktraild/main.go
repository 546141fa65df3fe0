// Package main provides the hooktraild entry point: a long-lived worker
// owning the in-memory rate-limit counters and serving aggregate stats.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"hooktrail/internal/config"
	"hooktrail/internal/logging"
	"hooktrail/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Listen port (default: from settings)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logging.Setup(level)

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}

	cfg := config.Get()
	if *port > 0 {
		cfg.WorkerPort = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down worker")
		cancel()
	}()

	log.Info().Str("version", Version).Msg("Starting hooktraild")
	svc := worker.NewService(cfg)
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Worker failed")
	}
}
