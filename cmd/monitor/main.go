package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/airshedlabs/enviro-risk-service/internal/adapter/http"
	influxadapter "github.com/airshedlabs/enviro-risk-service/internal/adapter/influx"
	kafkaadapter "github.com/airshedlabs/enviro-risk-service/internal/adapter/kafka"
	"github.com/airshedlabs/enviro-risk-service/internal/adapter/mapbox"
	mysqladapter "github.com/airshedlabs/enviro-risk-service/internal/adapter/mysql"
	"github.com/airshedlabs/enviro-risk-service/internal/config"
	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/history"
	"github.com/airshedlabs/enviro-risk-service/internal/observability"
	"github.com/airshedlabs/enviro-risk-service/internal/pipeline"
	"github.com/airshedlabs/enviro-risk-service/internal/reports"
)

// revalidateInterval controls how often pending citizen reports are rechecked
// against newly arrived sensor readings.
const revalidateInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mysqladapter.New(cfg.MySQLDSN, logger)
	if err != nil {
		logger.Error("mysql connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close() //nolint:errcheck

	if err := store.InitSchema(ctx); err != nil {
		logger.Error("mysql schema init failed", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	alertWriter := kafkaadapter.NewAlertWriter(cfg, logger)

	sinks := pipeline.MultiSink{store, alertWriter}
	if cfg.InfluxEnabled {
		influxSink, err := influxadapter.New(cfg, logger)
		if err != nil {
			logger.Error("influxdb connect failed", "error", err)
			os.Exit(1)
		}
		defer influxSink.Close()
		// Time-series writes are dashboard material; never block the cycle on them.
		sinks = append(sinks, &pipeline.BestEffortSink{Sink: influxSink, Logger: logger, Name: "influxdb"})
		logger.Info("influxdb sink enabled", "url", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}

	// Geocoder is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	hist := history.New(cfg.HistoryCapacity)

	p := pipeline.New(reader, sinks, hist, logger, metrics, pipeline.Config{
		BatchSize:   cfg.BatchSize,
		Normalizer:  cfg.Normalizer(),
		Risk:        domain.DefaultRiskConfig(),
		Correlation: domain.DefaultCorrelationConfig(),
	})

	reportSvc := reports.New(store, hist, geocoder, logger, metrics, cfg.Validation(), cfg.Credibility())

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, reportSvc, hist, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	// Pending reports get another validation pass as sensor history accrues.
	go func() {
		ticker := time.NewTicker(revalidateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := reportSvc.RevalidatePending(ctx)
				if err != nil {
					logger.Warn("revalidation pass failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("revalidation pass promoted reports", "validated", n)
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := alertWriter.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
