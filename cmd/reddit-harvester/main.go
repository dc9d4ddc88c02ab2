package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/harvester/internal/cache"
	"github.com/b9dashboard/harvester/internal/config"
	"github.com/b9dashboard/harvester/internal/httpclient"
	"github.com/b9dashboard/harvester/internal/logging"
	"github.com/b9dashboard/harvester/internal/proxypool"
	"github.com/b9dashboard/harvester/internal/reddit"
	"github.com/b9dashboard/harvester/internal/store/postgres"
	"github.com/b9dashboard/harvester/internal/supervisor"
	"github.com/b9dashboard/harvester/internal/useragent"
	"github.com/b9dashboard/harvester/internal/writer"
)

const scriptName = "reddit_scraper"

func main() {
	cfg := config.Load()
	logging.Init(cfg.Environment, cfg.LogLevel)

	if !cfg.RedditEnabled {
		log.Info().Msg("reddit harvester disabled via REDDIT_ENABLED, exiting")
		return
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	sink := logging.NewSink(db, scriptName, scriptName, 50, cfg.Writer.FlushInterval, 1000)
	defer sink.Shutdown()

	proxies := proxypool.New(db)
	ua := useragent.NewGenerator()
	client := httpclient.New(proxies, ua)
	facade := reddit.NewFacade(client)

	redditWriter := writer.NewRedditWriter(db, cfg.Writer.BatchSize, cfg.Writer.MaxRetryAttempts, cfg.Writer.FlushInterval)

	ctx, cancel := context.WithCancel(context.Background())
	redditWriter.Start(ctx)

	caches := cache.NewEngine(cfg.Reddit.CacheTTL)
	engine := reddit.NewEngine(db, facade, proxies, reddit.NewLiveWriter(redditWriter), caches, cfg.Reddit)

	sv := supervisor.New(db, engine, scriptName, scriptName, cfg.Supervisor.CheckInterval, cfg.Supervisor.HangThreshold)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	log.Info().Msg("reddit harvester starting")
	if err := sv.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("supervisor exited with error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Writer.FlushInterval*3)
	defer shutdownCancel()
	redditWriter.Shutdown(shutdownCtx)

	log.Info().Msg("reddit harvester stopped")
}
