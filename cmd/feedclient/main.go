package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/tsfeed/internal/api"
	"github.com/rickgao/tsfeed/internal/backoff"
	"github.com/rickgao/tsfeed/internal/config"
	"github.com/rickgao/tsfeed/internal/connection"
	"github.com/rickgao/tsfeed/internal/database"
	"github.com/rickgao/tsfeed/internal/httpapi"
	"github.com/rickgao/tsfeed/internal/metrics"
	"github.com/rickgao/tsfeed/internal/poller"
	"github.com/rickgao/tsfeed/internal/version"
	"github.com/rickgao/tsfeed/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/feedclient.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting feed client",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"feed_url", cfg.Feed.URL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New(cfg.Metrics.Namespace)

	var (
		sinks   []connection.SampleSink
		freq    *poller.Poller
		archive *writer.SampleWriter
		opts    = httpapi.Options{
			Metrics:     m.Handler(),
			MetricsPath: cfg.Metrics.Path,
			Logger:      logger,
		}
	)

	// Optional sample archive
	if cfg.Archive.Enabled {
		db := cfg.Archive.Database
		logger.Info("connecting to archive database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)

		pool, err := database.Connect(ctx, db)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := writer.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to prepare archive schema", "error", err)
			os.Exit(1)
		}

		archive = writer.NewSampleWriter(writer.WriterConfig{
			Source:        cfg.Instance.ID,
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			BufferSize:    cfg.Archive.BufferSize,
		}, pool, logger)
		if err := archive.Start(ctx); err != nil {
			logger.Error("failed to start sample writer", "error", err)
			os.Exit(1)
		}

		sinks = append(sinks, archive)
		opts.Archive = pool
	}

	// Optional frequency summary poller
	if cfg.Analysis.Enabled {
		apiClient, err := api.NewClient(
			cfg.Analysis.RestURL,
			api.WithAPIKey(cfg.Analysis.APIKey),
			api.WithUserAgent("tsfeed/"+version.Get().Version),
			api.WithLogger(logger),
			api.WithTimeout(cfg.Analysis.Timeout),
			api.WithRetryPolicy(api.RetryPolicy{
				MaxRetries: cfg.Analysis.MaxRetries,
				BaseDelay:  500 * time.Millisecond,
			}),
		)
		if err != nil {
			logger.Error("invalid analysis config", "error", err)
			os.Exit(1)
		}

		pcfg := poller.DefaultConfig()
		pcfg.Interval = cfg.Analysis.PollInterval
		pcfg.Timeout = cfg.Analysis.Timeout
		pcfg.OnResult = m.ObserveFetch
		freq = poller.New(pcfg, apiClient, logger)
		if err := freq.Start(ctx); err != nil {
			logger.Error("failed to start frequency poller", "error", err)
			os.Exit(1)
		}

		sinks = append(sinks, freq)
		opts.Frequency = freq
	}

	// Connection manager
	manager := connection.NewManager(managerConfig(cfg, m, sinks, logger), logger)
	m.WatchFeed(manager)
	status := connection.NewStatusPort(manager)

	if err := manager.Connect(); err != nil {
		logger.Error("failed to start connection", "error", err)
		os.Exit(1)
	}

	// Status server
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           httpapi.New(status, opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting status server", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", "error", err)
			cancel()
		}
	}()

	logger.Info("feed client running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.HTTP.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown", "error", err)
	}
	if err := manager.Disconnect(shutdownCtx); err != nil {
		logger.Warn("connection manager shutdown", "error", err)
	}
	if freq != nil {
		freq.Stop(shutdownCtx)
	}
	if archive != nil {
		archive.Stop(shutdownCtx)
		stats := archive.Stats()
		logger.Info("archive totals",
			"inserts", stats.Inserts,
			"conflicts", stats.Conflicts,
			"errors", stats.Errors,
			"dropped", stats.Dropped,
		)
	}

	logger.Info("feed client stopped")
}

// managerConfig maps the feed section onto the connection manager.
func managerConfig(cfg *config.Config, m *metrics.Metrics, sinks []connection.SampleSink, logger *slog.Logger) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.Client.URL = cfg.Feed.URL
	mc.Client.HandshakeTimeout = cfg.Feed.HandshakeTimeout
	mc.Client.PingInterval = cfg.Feed.PingInterval
	mc.Client.PingTimeout = cfg.Feed.PingTimeout
	mc.MaxPoints = cfg.Feed.MaxPoints
	mc.Backoff = backoff.Policy{
		InitialDelay: cfg.Feed.InitialBackoff,
		MaxDelay:     cfg.Feed.MaxBackoff,
		MaxAttempts:  cfg.Feed.ReconnectAttempts,
	}
	mc.ClearOnReconnect = cfg.Feed.ClearOnReconnect
	mc.Sinks = sinks
	mc.OnTransition = func(t connection.Transition) {
		m.ObserveTransition(t)
		logger.Debug("feed state changed",
			"from", t.From,
			"to", t.To,
			"attempt", t.Attempt,
			"attempt_id", t.AttemptID,
		)
	}
	return mc
}
