package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cryptodata/internal/api"
	"cryptodata/internal/cache"
	"cryptodata/internal/config"
	"cryptodata/internal/extract"
	"cryptodata/internal/logging"
	"cryptodata/internal/metrics"
	"cryptodata/internal/quality"
	"cryptodata/internal/repair"
	"cryptodata/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cryptodata: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Filename:   cfg.Logging.Filename,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
		"env":     cfg.App.Env,
	}).Info("starting")

	cacher, err := cache.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer cacher.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	registry := extract.NewRegistry()
	orch := extract.NewOrchestrator(registry, cfg.Extract, cacher, collector, log)

	qualityEngine := quality.NewEngine(cfg.Quality, nil, log)
	repairEngine, err := repair.NewEngine(cfg.Repair, cfg.Quality, log)
	if err != nil {
		return fmt.Errorf("initializing repair engine: %w", err)
	}

	pipeline := extract.NewPipeline(orch, qualityEngine, repairEngine, cfg, cacher, storage.Nop{}, collector, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		scheduler := extract.NewScheduler(pipeline, cfg.Scheduler, cfg.Defaults, log)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	server := api.NewServer(cfg, pipeline, registry, cfg.Defaults, log)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
