package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/harvester/internal/config"
	"github.com/b9dashboard/harvester/internal/instagram"
	"github.com/b9dashboard/harvester/internal/logging"
	"github.com/b9dashboard/harvester/internal/store/postgres"
	"github.com/b9dashboard/harvester/internal/supervisor"
	"github.com/b9dashboard/harvester/internal/writer"
)

const scriptName = "instagram_scraper"

func main() {
	cfg := config.Load()
	logging.Init(cfg.Environment, cfg.LogLevel)

	if !cfg.InstagramEnabled {
		log.Info().Msg("instagram harvester disabled via INSTAGRAM_ENABLED, exiting")
		return
	}
	if cfg.RapidAPIKey == "" {
		log.Fatal().Msg("RAPIDAPI_KEY is required")
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	sink := logging.NewSink(db, scriptName, scriptName, 50, cfg.Writer.FlushInterval, 1000)
	defer sink.Shutdown()

	facade := instagram.NewFacade(cfg.RapidAPIKey, cfg.RapidAPIHost, cfg.Instagram.RequestsPerSecond, cfg.Instagram.RateLimitMaxRetries)
	instagramWriter := writer.NewInstagramWriter(db, cfg.Writer.BatchSize, cfg.Writer.MaxRetryAttempts, cfg.Writer.FlushInterval)

	ctx, cancel := context.WithCancel(context.Background())
	instagramWriter.Start(ctx)

	engine := instagram.NewEngine(db, facade, instagram.NewLiveWriter(instagramWriter), cfg.Instagram)

	// Instagram has no system_logs-based hang watchdog (§4.8 names it
	// Reddit-only): passing an empty logSource disables it.
	sv := supervisor.New(db, engine, scriptName, "", cfg.Supervisor.CheckInterval, cfg.Supervisor.HangThreshold)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	log.Info().Msg("instagram harvester starting")
	if err := sv.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("supervisor exited with error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Writer.FlushInterval*3)
	defer shutdownCancel()
	instagramWriter.Shutdown(shutdownCtx)

	log.Info().Msg("instagram harvester stopped")
}
