package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/seismoguard/quake-ingest/internal/adapter/feed"
	httpadapter "github.com/seismoguard/quake-ingest/internal/adapter/http"
	kafkaadapter "github.com/seismoguard/quake-ingest/internal/adapter/kafka"
	"github.com/seismoguard/quake-ingest/internal/adapter/solar"
	"github.com/seismoguard/quake-ingest/internal/config"
	"github.com/seismoguard/quake-ingest/internal/domain"
	"github.com/seismoguard/quake-ingest/internal/observability"
	"github.com/seismoguard/quake-ingest/internal/pipeline"
	"github.com/seismoguard/quake-ingest/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	session := domain.NewSessionState(domain.Settings{
		Latitude:          cfg.UserLat,
		Longitude:         cfg.UserLon,
		RadiusKm:          cfg.RadiusKm,
		MinMagnitude:      cfg.MinMagnitude,
		TimeWindowHours:   cfg.TimeWindowHours,
		AlertThreshold:    cfg.AlertThreshold,
		CriticalThreshold: cfg.CriticalThreshold,
	})

	fetcher := feed.NewClient(cfg.FetchTimeout, cfg.SourceRateRPS)
	endpoints := []feed.Endpoint{
		{Source: domain.SourceKandilli, URL: cfg.KandilliURL},
		{Source: domain.SourceKRDAE, URL: cfg.KRDAEURL, ExtractPre: true},
		{Source: domain.SourceAFAD, URL: cfg.AFADURL},
		{Source: domain.SourceUSGS, URL: cfg.USGSURL},
		{Source: domain.SourceEMSC, URL: cfg.EMSCURL},
	}
	// The Kandilli provider has two independent retrieval strategies; the
	// raw bulletin backs up the structured API.
	fallbacks := map[domain.Source]feed.Endpoint{
		domain.SourceKandilli: {Source: domain.SourceKRDAE, URL: cfg.KRDAEURL, ExtractPre: true},
	}

	// Event/alert publishing is feature-flagged via KAFKA_BROKERS.
	var notifier pipeline.Notifier
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaEventTopic, cfg.KafkaAlertTopic, logger)
		notifier = publisher
		logger.Info("kafka publishing enabled",
			"brokers", cfg.KafkaBrokers,
			"event_topic", cfg.KafkaEventTopic,
			"alert_topic", cfg.KafkaAlertTopic,
		)
	} else {
		logger.Info("kafka publishing disabled")
	}

	dedup := store.NewDedup(cfg.DedupCapacity)
	eventLog := store.NewEventLog(cfg.EventLogCapacity)

	scheduler := pipeline.New(
		fetcher, endpoints, fallbacks,
		dedup, eventLog, session,
		notifier, logger, metrics, clock,
		pipeline.Options{
			RefreshInterval: cfg.RefreshInterval,
			FetchTimeout:    cfg.FetchTimeout,
			SourceBatchCap:  cfg.SourceBatchCap,
			WarmupThreshold: cfg.WarmupThreshold,
		},
	)

	solarClient := solar.NewClient(cfg.SolarURL, cfg.SolarTimeout, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, scheduler, session, solarClient, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
