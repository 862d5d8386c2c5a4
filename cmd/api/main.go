package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/handlers"
	"github.com/dvloznov/finance-ledger/internal/bootstrap"
	"github.com/dvloznov/finance-ledger/internal/config"
	jobsmem "github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/report"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("FINLEDGER_CONFIG"), "Path to YAML config file (or set FINLEDGER_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port (overrides server.port)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Format: cfg.Log.Format, Level: cfg.Log.Level})

	ctx := logger.WithContext(context.Background(), log)

	st, err := bootstrap.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	defer st.Close()

	// Initialize write-back job infrastructure
	jobStore := bootstrap.JobStore(cfg.WriteBack)
	jobQueue := jobsmem.NewQueue(bootstrap.QueueConfig(cfg.WriteBack), jobStore)

	engine, err := bootstrap.NewEngine(cfg, st, jobQueue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.WriteBack.Workers).Msg("Starting write-back workers")
	if err := jobQueue.Start(workerCtx, engine.WriteBackHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start write-back workers")
	}

	var exporter handlers.Exporter
	if cfg.Report.Bucket != "" {
		storage, err := report.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()
		exporter = report.NewExporter(storage, cfg.Report.Bucket)
	} else {
		log.Warn().Msg("No report bucket configured - audit export will be disabled")
	}

	if cfg.Auth.Token == "" {
		log.Warn().Msg("No auth token configured - API is unauthenticated")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Ledger:    engine,
		Jobs:      jobStore,
		Exporter:  exporter,
		AuthToken: cfg.Auth.Token,
		Metrics:   true,
		Log:       log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting write-backs and let queued ones finish
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping write-back queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
