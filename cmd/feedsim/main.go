// feedsim runs a local ingestion server that streams a random walk over
// WebSocket, for developing against the feed client without the real
// services.
// Usage: go run ./cmd/feedsim -addr :8080 -interval 1s
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
	"time"

	"github.com/rickgao/tsfeed/internal/simulator"
	"github.com/rickgao/tsfeed/internal/version"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	interval := flag.Duration("interval", time.Second, "time between samples")
	history := flag.Int("history", 64, "samples kept for the frequency endpoint")
	dropEvery := flag.Duration("drop-every", 0, "abruptly drop all subscribers this often (0 disables)")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	gen := simulator.NewGenerator(simulator.DefaultGeneratorConfig(), *seed)
	sim := simulator.NewServer(simulator.ServerConfig{
		Interval:  *interval,
		History:   *history,
		DropEvery: *dropEvery,
	}, gen, logger)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("feed simulator running",
		"version", version.Version,
		"addr", *addr,
		"stream", simulator.StreamPath,
		"interval", *interval,
		"drop_every", *dropEvery,
	)

	// Blocks until shutdown, then sends close frames to subscribers.
	sim.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	logger.Info("feed simulator stopped")
}
