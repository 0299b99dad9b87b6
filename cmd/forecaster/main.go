package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	csvadapter "github.com/couchcryptid/ensemble-cast/internal/adapter/csv"
	httpadapter "github.com/couchcryptid/ensemble-cast/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ensemble-cast/internal/adapter/kafka"
	"github.com/couchcryptid/ensemble-cast/internal/adapter/openmeteo"
	"github.com/couchcryptid/ensemble-cast/internal/adapter/sqlite"
	"github.com/couchcryptid/ensemble-cast/internal/config"
	"github.com/couchcryptid/ensemble-cast/internal/domain"
	"github.com/couchcryptid/ensemble-cast/internal/observability"
	"github.com/couchcryptid/ensemble-cast/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	once := flag.Bool("once", false, "run a single consolidation cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := openmeteo.NewClient(openmeteo.Settings{
		BaseURL:     cfg.API.BaseURL,
		MetadataURL: cfg.API.MetadataURL,
		Latitude:    cfg.Location.Latitude,
		Longitude:   cfg.Location.Longitude,
		Variables:   cfg.Variables,
	}, cfg.API.Timeout.Std(), logger)

	store, err := sqlite.NewStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	exporter := csvadapter.NewExporter(cfg.Export.OutputDir, logger)

	var publisher pipeline.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.Kafka.Enabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("kafka publishing enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	consolidator := pipeline.New(fetcher, store, exporter, publisher, logger, metrics, pipeline.Options{
		Models:        cfg.Models,
		VariableOrder: cfg.Variables,
		Stats: domain.StatOptions{
			PrecipThresholdMM: cfg.Thresholds.PrecipitationMinMM,
			MinSample:         cfg.Thresholds.MinSample,
			CalmWindBelow:     cfg.Thresholds.CalmWindMaxKMH,
		},
		Location:     cfg.TimeLocation(),
		PollInterval: cfg.PollInterval.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Purge(ctx, cfg.Database.RetentionDays); err != nil {
		logger.Warn("purge of old runs failed", "error", err)
	}

	if *once {
		runOnce(ctx, consolidator, store, kafkaWriter, logger)
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, consolidator, consolidator, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start consolidation loop.
	go func() {
		if err := consolidator.Run(ctx); err != nil {
			logger.Error("consolidator error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeAll(store, kafkaWriter, logger)

	logger.Info("shutdown complete")
}

func runOnce(ctx context.Context, c *pipeline.Consolidator, store *sqlite.Store, kafkaWriter *kafkaadapter.Writer, logger *slog.Logger) {
	processed, err := c.RunOnce(ctx)
	closeAll(store, kafkaWriter, logger)
	if err != nil {
		logger.Error("consolidation failed", "error", err)
		os.Exit(1)
	}
	if !processed {
		logger.Info("no new model runs")
		return
	}
	logger.Info("consolidation complete")
}

func closeAll(store *sqlite.Store, kafkaWriter *kafkaadapter.Writer, logger *slog.Logger) {
	if err := store.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
}
