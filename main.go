package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"adamstat/adapters/sqlstore"
	"adamstat/adapters/stats/engine"
	"adamstat/app"
	"adamstat/internal/api"
	"adamstat/internal/config"
	"adamstat/internal/logging"
	"adamstat/ports"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger, logCloser, err := logging.New(appConfig.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create logger")
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The run store is optional; without DATABASE_URL runs are not persisted
	var repo ports.RunRepository
	if appConfig.Database.URL != "" {
		db, err := sqlstore.Open(ctx, appConfig.Database.URL, appConfig.Database.MaxOpenConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize run store")
		}
		defer db.Close()
		repo = sqlstore.NewRunRepository(db)
		logger.Info().Str("driver", db.DriverName()).Msg("Run store enabled")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, runs will not be persisted")
	}

	service := app.NewTTestService(engine.NewTTestEngine(), repo, appConfig, logger)
	server := api.NewServer(service, logger)

	if err := server.ListenAndServe(ctx, ":"+appConfig.Server.Port); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server failed")
	}
}
