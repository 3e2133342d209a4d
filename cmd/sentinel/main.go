package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"BandSentinel/internal/collector"
	"BandSentinel/internal/config"
	"BandSentinel/internal/logger"
	"BandSentinel/internal/metrics"
	"BandSentinel/internal/model"
	"BandSentinel/internal/notifier"
	"BandSentinel/internal/scheduler"
	"BandSentinel/internal/store"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init("info", true)
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("config", cfgPath).Msg("BandSentinel starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	profiles, err := cfg.Active()
	if err != nil {
		log.Fatal().Err(err).Msg("load profiles")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init store
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	// Init metrics
	m := metrics.New(nil)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	// Init fetcher and register the watchlist
	fetcher := collector.NewYahooFetcher(collector.YahooOptions{
		Proxy:             cfg.DataSource.Proxy,
		Suffix:            cfg.DataSource.Suffix,
		RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
		Timeout:           cfg.DataSource.Timeout,
	})
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	updater := collector.NewUpdater(fetcher, db, m)
	updater.Backfill = cfg.Analysis.LookbackDays
	updater.Listing = collector.NewKRXListingFetcher(collector.ListingOptions{
		Proxy:   cfg.DataSource.Proxy,
		Timeout: cfg.DataSource.Timeout,
		URL:     cfg.DataSource.ListingURL,
	})
	if _, err := updater.RefreshListings(ctx, time.Now()); err != nil {
		log.Error().Err(err).Msg("refresh listings, continuing with the stored listing")
	}
	watch := make([]model.Company, 0, len(cfg.Watchlist))
	for _, w := range cfg.Watchlist {
		watch = append(watch, model.Company{Code: w.Code, Name: w.Name})
	}
	// names not listed yet are resolved again on every evaluation
	if _, err := updater.Register(ctx, watch); err != nil {
		log.Fatal().Err(err).Msg("register watchlist")
	}

	// Init Telegram notifier
	tn, err := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.DataSource.Proxy)
	if err != nil {
		log.Fatal().Err(err).Msg("init telegram")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, scheduler.Options{
		Updater:      updater,
		Store:        db,
		Recorder:     db,
		History:      db,
		Notifier:     tn,
		Metrics:      m,
		Profiles:     profiles,
		Watchlist:    watch,
		LookbackDays: cfg.Analysis.LookbackDays,
		Workers:      cfg.Analysis.Workers,
	})
	if err := sched.RegisterAll(cfg.Schedule.UpdateCron, cfg.Schedule.EvaluateCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Telegram.Commands {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, updating and evaluating now")
		go sched.RunNow()
	}

	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	log.Info().Strs("profiles", names).Int("watchlist", len(watch)).Msg("BandSentinel is running, press Ctrl+C to stop")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	log.Info().Msg("BandSentinel stopped")
}
