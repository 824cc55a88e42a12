package main

import (
	"context"
	"os"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/db"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file found")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer database.Close()

	applied, err := database.Migrate(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("error executing migrations")
	}
	if len(applied) == 0 {
		logger.Info().Msg("database is up to date")
		return
	}
	logger.Info().Strs("applied", applied).Msg("migrations completed successfully")
}
