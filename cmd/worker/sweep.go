package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
)

// ledger is the part of the engine a sweep drives.
type ledger interface {
	RefreshOverdue(ctx context.Context, asOf time.Time) (int, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error)
	Audit(ctx context.Context) (*reconcile.AuditReport, error)
}

type exporter interface {
	Export(ctx context.Context, r *reconcile.AuditReport) (string, error)
}

// sweeper periodically brings derived state up to date and audits the result.
type sweeper struct {
	ledger   ledger
	exporter exporter
	now      func() time.Time
}

type sweepResult struct {
	MarkedOverdue int
	Accounts      int
	Cards         int
	Report        *reconcile.AuditReport
	ExportURI     string
}

func (s *sweeper) run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep runs one pass. Steps are independent: a failing step is reported
// and the remaining steps still run.
func (s *sweeper) sweep(ctx context.Context) (*sweepResult, error) {
	log := logger.FromContext(ctx)
	res := &sweepResult{}
	var errs []error

	n, err := s.ledger.RefreshOverdue(ctx, s.now())
	res.MarkedOverdue = n
	if err != nil {
		errs = append(errs, fmt.Errorf("refresh overdue: %w", err))
	}

	// Reads recompute derived values and publish write-backs for drift.
	accounts, err := s.ledger.ListAccounts(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list accounts: %w", err))
	}
	res.Accounts = len(accounts)

	cards, err := s.ledger.ListCreditCards(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list credit cards: %w", err))
	}
	res.Cards = len(cards)

	report, err := s.ledger.Audit(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("audit: %w", err))
	} else {
		res.Report = report
		if s.exporter != nil {
			uri, err := s.exporter.Export(ctx, report)
			if err != nil {
				errs = append(errs, fmt.Errorf("export: %w", err))
			}
			res.ExportURI = uri
		}
	}

	event := log.Info()
	if res.Report != nil && !res.Report.Clean() {
		event = log.Warn().
			Int("paid_without_settlement", len(res.Report.PaidWithoutSettlement)).
			Int("open_with_settlement", len(res.Report.OpenWithSettlement)).
			Int("duplicate_settlements", len(res.Report.DuplicateSettlements)).
			Int("orphaned_transactions", len(res.Report.OrphanedTransactions)).
			Int("account_drift", len(res.Report.AccountDrift)).
			Int("card_drift", len(res.Report.CardDrift))
	}
	event.
		Int("marked_overdue", res.MarkedOverdue).
		Int("accounts", res.Accounts).
		Int("cards", res.Cards).
		Str("export_uri", res.ExportURI).
		Msg("Sweep completed")

	return res, errors.Join(errs...)
}
