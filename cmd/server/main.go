package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/database"
	"github.com/aristath/risk-engine/internal/engine"
	"github.com/aristath/risk-engine/internal/modules/portfolio"
	"github.com/aristath/risk-engine/internal/server"
	"github.com/aristath/risk-engine/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting risk engine")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	// market.db - holdings, valuations, return history, symbol metadata
	marketDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/market.db",
		Profile: database.ProfileMarket,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market database")
	}
	defer marketDB.Close()

	if err := marketDB.Migrate(portfolio.MarketSchema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate market database")
	}

	// reports.db - persisted risk and optimization reports
	reportsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/reports.db",
		Profile: database.ProfileReports,
		Name:    "reports",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize reports database")
	}
	defer reportsDB.Close()

	if err := reportsDB.Migrate(portfolio.ReportsSchema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate reports database")
	}

	// Wire collaborators into the engine facade
	store := portfolio.NewStore(marketDB, log)
	metadata := portfolio.NewMetadataRepository(marketDB, cfg.Risk.NeutralLiquidityScore, log)
	reports := portfolio.NewReportRepository(reportsDB, log)
	eng := engine.New(store, metadata, reports, *cfg, log)

	srv := server.New(server.Config{
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		Engine:  eng,
		Log:     log,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
