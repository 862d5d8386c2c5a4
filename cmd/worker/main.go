package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/bootstrap"
	"github.com/dvloznov/finance-ledger/internal/config"
	jobsmem "github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/report"
)

func main() {
	configPath := flag.String("config", os.Getenv("FINLEDGER_CONFIG"), "Path to YAML config file (or set FINLEDGER_CONFIG env)")
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Format: cfg.Log.Format, Level: cfg.Log.Level})

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	st, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	defer st.Close()

	// Initialize write-back job infrastructure
	jobQueue := jobsmem.NewQueue(bootstrap.QueueConfig(cfg.WriteBack), bootstrap.JobStore(cfg.WriteBack))

	engine, err := bootstrap.NewEngine(cfg, st, jobQueue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	if err := jobQueue.Start(ctx, engine.WriteBackHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start write-back workers")
	}

	sw := &sweeper{ledger: engine, now: time.Now}
	if cfg.Report.Bucket != "" {
		storage, err := report.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()
		sw.exporter = report.NewExporter(storage, cfg.Report.Bucket)
	}

	log.Info().
		Dur("interval", cfg.Worker.Interval).
		Str("store", cfg.Store.Driver).
		Bool("export", sw.exporter != nil).
		Msg("Starting reconciliation worker")

	if *once {
		if _, err := sw.sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
		}
	} else {
		go sw.run(ctx, cfg.Worker.Interval)

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info().Msg("Shutting down worker service...")
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Let queued write-backs finish before the store closes
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}
