// Package bootstrap wires configuration into a store and an engine for the
// command-line entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/config"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	jobsmem "github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/dvloznov/finance-ledger/internal/store/inmemory"
	"github.com/rs/zerolog"
)

// OpenStore opens the backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return inmemory.NewStore(), nil
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverBigQuery:
		bq, err := infraBQ.NewBigQueryStore(ctx, cfg.ProjectID, cfg.DatasetID)
		if err != nil {
			return nil, err
		}
		if err := bq.EnsureSchema(ctx); err != nil {
			bq.Close()
			return nil, err
		}
		return bq, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// QueueConfig converts the write-back section into queue settings.
func QueueConfig(cfg config.WriteBackConfig) jobsmem.QueueConfig {
	return jobsmem.QueueConfig{
		BufferSize:   cfg.BufferSize,
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
}

// JobStore creates the write-back job store with the configured retention.
func JobStore(cfg config.WriteBackConfig) *jobsmem.Store {
	return jobsmem.NewStore(jobsmem.WithRetention(cfg.Retention))
}

// NewEngine builds an engine over s. A nil publisher makes write-backs synchronous.
func NewEngine(cfg *config.Config, s store.Store, publisher jobs.Publisher, log zerolog.Logger) (*reconcile.Engine, error) {
	tolerance, err := cfg.ToleranceDecimal()
	if err != nil {
		return nil, err
	}
	return reconcile.NewEngine(s, reconcile.Options{
		Publisher: publisher,
		Cache:     cache.New(cache.WithTTL(cfg.Reconcile.CacheTTL)),
		Tolerance: tolerance,
		Logger:    &log,
	}), nil
}
