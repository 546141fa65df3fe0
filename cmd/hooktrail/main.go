// Package main provides the hook entry point. The host pipes one JSON
// lifecycle event to stdin; the process runs the full pipeline once and
// exits. Stdout carries only the host response document, diagnostics go to
// stderr.
package main

import (
	"io"
	"os"

	"hooktrail/internal/config"
	"hooktrail/internal/logging"
	"hooktrail/internal/pipeline"
	"hooktrail/pkg/hooks"

	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	level := zerolog.InfoLevel
	if os.Getenv("HOOKTRAIL_DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	logging.Setup(level)
	log := logging.Component("hooktrail")

	// One failing event must never crash the host that invoked us.
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("unexpected failure while processing event")
			hooks.WriteResponse(false)
			code = hooks.ExitFailure
		}
	}()

	cfg := config.Get()
	if err := config.EnsureDataDir(); err != nil {
		log.Error().Err(err).Msg("cannot create data directories")
		hooks.WriteResponse(false)
		return hooks.ExitFailure
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Error().Err(err).Msg("cannot read event from stdin")
		hooks.WriteResponse(false)
		return hooks.ExitFailure
	}

	runner, err := pipeline.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("cannot initialize pipeline")
		hooks.WriteResponse(false)
		return hooks.ExitFailure
	}
	defer runner.Close() //nolint:errcheck

	code = runner.Process(raw)
	hooks.WriteResponse(code == hooks.ExitSuccess)
	return code
}
