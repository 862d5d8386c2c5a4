package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/store/inmemory"
	"github.com/rs/zerolog"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory})
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		if _, ok := s.(*inmemory.Store); !ok {
			t.Errorf("got %T, want *inmemory.Store", s)
		}
	})

	t.Run("sqlite creates directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "ledger.db")
		s, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path})
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		defer s.Close()
		if _, ok := s.(*sqlite.DB); !ok {
			t.Errorf("got %T, want *sqlite.DB", s)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		if _, err := OpenStore(ctx, config.StoreConfig{Driver: "postgres"}); err == nil {
			t.Fatal("expected error for unknown driver")
		}
	})
}

func TestQueueConfig(t *testing.T) {
	got := QueueConfig(config.WriteBackConfig{BufferSize: 5, Workers: 3, MaxRetries: 1, RetryBackoff: time.Millisecond})
	if got.BufferSize != 5 || got.Workers != 3 || got.MaxRetries != 1 || got.RetryBackoff != time.Millisecond {
		t.Errorf("QueueConfig() = %+v", got)
	}
}

func TestJobStore_Retention(t *testing.T) {
	ctx := context.Background()
	js := JobStore(config.WriteBackConfig{Retention: 1})
	for _, id := range []string{"j1", "j2"} {
		job := &jobs.WriteBackJob{JobID: id, Entity: jobs.EntityAccountBalance, EntityID: "a1", Status: jobs.JobStatusCompleted, CreatedAt: time.Now()}
		if err := js.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob(%s) error: %v", id, err)
		}
	}
	got, err := js.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("kept jobs = %d, want 1", len(got))
	}
}

func TestNewEngine(t *testing.T) {
	cfg := &config.Config{Reconcile: config.ReconcileConfig{Tolerance: "0.05", CacheTTL: 3 * time.Second}}
	e, err := NewEngine(cfg, inmemory.NewStore(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if got := e.Cache().TTL(); got != 3*time.Second {
		t.Errorf("cache TTL = %v, want 3s", got)
	}

	cfg.Reconcile.Tolerance = "abc"
	if _, err := NewEngine(cfg, inmemory.NewStore(), nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for bad tolerance")
	}
}
