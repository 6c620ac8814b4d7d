package main

import (
	"os"

	"github.com/rs/zerolog"

	"speech-orchestrator/internal/bootstrap"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	app, err := bootstrap.New(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
