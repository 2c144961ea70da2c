package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cachefs/internal/config"
	"github.com/marmos91/cachefs/internal/logger"
	"github.com/marmos91/cachefs/pkg/cachemanager"
	"github.com/marmos91/cachefs/pkg/metrics"

	// Registers the Prometheus CacheMetrics constructor via init().
	_ "github.com/marmos91/cachefs/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache engine in the foreground",
	Long: `Run the cache engine in the foreground: opens the cache root,
wires the configured object backend, and serves reads and writes
through the Cache Manager until interrupted.

cachefsd has no FUSE or NFS adapter of its own (out of scope, per the
kernel filesystem adapter described alongside this engine); serve
exposes the Cache Manager's Read/Write/FlushAll surface for an
in-process adapter to call, and otherwise just keeps the background
flush loop and prefetch pool running.

Examples:
  cachefsd serve
  cachefsd serve --config /etc/cachefsd/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	remote, err := config.BuildBackend(ctx, &cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to build object backend: %w", err)
	}
	logger.Info("object backend configured", "type", cfg.Backend.Type)

	manager, err := cachemanager.New(cachemanager.Config{
		CacheRoot:           cfg.Cache.Root,
		PrefetchWindow:      cfg.Cache.PrefetchWindow,
		PrefetchWorkers:     cfg.Cache.PrefetchWorkers,
		CacheBlocksCapacity: cfg.Cache.CacheBlocksCapacity,
		AllowDirtyEviction:  cfg.Cache.AllowDirtyEviction,
	}, remote)
	if err != nil {
		return fmt.Errorf("failed to initialize cache manager: %w", err)
	}
	defer manager.Close()

	logger.Info("cache manager ready",
		"cache_root", cfg.Cache.Root,
		"prefetch_window", cfg.Cache.PrefetchWindow,
		"prefetch_workers", cfg.Cache.PrefetchWorkers,
		"cache_blocks_capacity", cfg.Cache.CacheBlocksCapacity)

	flushDone := make(chan struct{})
	go runFlushLoop(ctx, manager, cfg.Cache.FlushInterval, flushDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("cachefsd is running. Press Ctrl+C to stop.")
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received, flushing and exiting")

	cancel()
	<-flushDone

	if err := manager.FlushAll(); err != nil {
		logger.Error("final flush failed", "error", err)
		return err
	}
	logger.Info("cachefsd stopped gracefully")
	return nil
}

// runFlushLoop calls FlushAll (which persists dirty bitmaps to the cache
// root; it uploads nothing to the object backend) on a fixed interval
// until ctx is cancelled, then signals done without flushing again.
// runServe performs the final flush after done is closed.
func runFlushLoop(ctx context.Context, manager *cachemanager.Manager, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := manager.FlushAll(); err != nil {
				logger.Error("periodic flush failed", "error", err)
			}
		}
	}
}
