package main

import (
	"context"
	"os"
	"time"

	"adamstat/adapters/sqlstore"
	"adamstat/internal/config"
	"adamstat/internal/logging"
	"adamstat/internal/migration"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// migrate applies the run store schema to the database named by the first
// argument, or DATABASE_URL when no argument is given.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create logger")
	}
	defer logCloser.Close()

	databaseURL := cfg.Database.URL
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		logger.Fatal().Msg("Usage: migrate <database_url> (or set DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sqlstore.Open(ctx, databaseURL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("Migration failed")
	}
	defer db.Close()

	logger.Info().
		Str("driver", db.DriverName()).
		Str("version", migration.NewRunner().Version()).
		Msg("Run store schema is up to date")
}
