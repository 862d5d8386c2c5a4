package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/observability"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// Drift is a stored derived value that disagrees with the ledger.
type Drift struct {
	ID       string          `json:"id"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
}

// AuditReport lists cross-entity inconsistencies. Ids are sorted.
type AuditReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	// PaidWithoutSettlement are paid bills with no linked transaction,
	// excluding card bills settled by an invoice payment.
	PaidWithoutSettlement []string `json:"paid_without_settlement"`

	// OpenWithSettlement are pending or overdue bills that still have
	// linked transactions.
	OpenWithSettlement []string `json:"open_with_settlement"`

	// DuplicateSettlements are bills linked to more than one transaction.
	DuplicateSettlements []string `json:"duplicate_settlements"`

	// OrphanedTransactions reference an account that no longer exists.
	OrphanedTransactions []string `json:"orphaned_transactions"`

	AccountDrift []Drift `json:"account_drift"`
	CardDrift    []Drift `json:"card_drift"`
}

// Clean reports whether the audit found nothing.
func (r *AuditReport) Clean() bool {
	return len(r.PaidWithoutSettlement) == 0 &&
		len(r.OpenWithSettlement) == 0 &&
		len(r.DuplicateSettlements) == 0 &&
		len(r.OrphanedTransactions) == 0 &&
		len(r.AccountDrift) == 0 &&
		len(r.CardDrift) == 0
}

// RepairResult counts what Repair changed.
type RepairResult struct {
	BillsReopened      int `json:"bills_reopened"`
	SettlementsRemoved int `json:"settlements_removed"`
	BalancesFixed      int `json:"balances_fixed"`
	UsedAmountsFixed   int `json:"used_amounts_fixed"`
}

// Audit reads the whole store and reports inconsistencies. It changes nothing.
func (e *Engine) Audit(ctx context.Context) (*AuditReport, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("Audit: list accounts: %w", err)
	}
	cards, err := e.store.ListCreditCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("Audit: list cards: %w", err)
	}
	bills, err := e.store.ListBills(ctx, store.BillFilter{})
	if err != nil {
		return nil, fmt.Errorf("Audit: list bills: %w", err)
	}
	txs, err := e.store.ListTransactions(ctx, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("Audit: list transactions: %w", err)
	}

	report := &AuditReport{GeneratedAt: e.now().UTC()}

	byAccount := make(map[string][]*domain.Transaction)
	byCard := make(map[string][]*domain.Transaction)
	byBill := make(map[string][]*domain.Transaction)
	invoiceSettlements := make(map[string]string)
	for _, t := range txs {
		if t.AccountID != "" {
			byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
		}
		if t.CreditCardID != "" {
			byCard[t.CreditCardID] = append(byCard[t.CreditCardID], t)
			if t.IsSettlement() && t.BillID == "" {
				invoiceSettlements[t.ID] = t.CreditCardID
			}
		}
		if t.BillID != "" {
			byBill[t.BillID] = append(byBill[t.BillID], t)
		}
	}

	for _, b := range bills {
		linked := byBill[b.ID]
		switch {
		case b.Status == domain.BillPaid && len(linked) == 0:
			// Covered only by the invoice settlement that marked this bill paid.
			if b.InvoiceSettlementID != "" && b.CreditCardID != "" &&
				invoiceSettlements[b.InvoiceSettlementID] == b.CreditCardID {
				continue
			}
			report.PaidWithoutSettlement = append(report.PaidWithoutSettlement, b.ID)
		case b.Status != domain.BillPaid && len(linked) > 0:
			report.OpenWithSettlement = append(report.OpenWithSettlement, b.ID)
		}
		if len(linked) > 1 {
			report.DuplicateSettlements = append(report.DuplicateSettlements, b.ID)
		}
	}

	known := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		known[a.ID] = true
		computed := RecomputeAccountBalance(byAccount[a.ID])
		if e.drifted(computed, a.Balance) {
			report.AccountDrift = append(report.AccountDrift, Drift{ID: a.ID, Stored: a.Balance, Computed: computed})
		}
	}
	for id, linked := range byAccount {
		if known[id] {
			continue
		}
		for _, t := range linked {
			report.OrphanedTransactions = append(report.OrphanedTransactions, t.ID)
		}
	}

	for _, c := range cards {
		computed := RecomputeCreditCardUsage(byCard[c.ID])
		if e.drifted(computed, c.UsedAmount) {
			report.CardDrift = append(report.CardDrift, Drift{ID: c.ID, Stored: c.UsedAmount, Computed: computed})
		}
	}

	sort.Strings(report.PaidWithoutSettlement)
	sort.Strings(report.OpenWithSettlement)
	sort.Strings(report.DuplicateSettlements)
	sort.Strings(report.OrphanedTransactions)
	sort.Slice(report.AccountDrift, func(i, j int) bool { return report.AccountDrift[i].ID < report.AccountDrift[j].ID })
	sort.Slice(report.CardDrift, func(i, j int) bool { return report.CardDrift[i].ID < report.CardDrift[j].ID })

	observability.AuditFindings.WithLabelValues("paid_without_settlement").Set(float64(len(report.PaidWithoutSettlement)))
	observability.AuditFindings.WithLabelValues("open_with_settlement").Set(float64(len(report.OpenWithSettlement)))
	observability.AuditFindings.WithLabelValues("duplicate_settlements").Set(float64(len(report.DuplicateSettlements)))
	observability.AuditFindings.WithLabelValues("orphaned_transactions").Set(float64(len(report.OrphanedTransactions)))
	observability.AuditFindings.WithLabelValues("account_drift").Set(float64(len(report.AccountDrift)))
	observability.AuditFindings.WithLabelValues("card_drift").Set(float64(len(report.CardDrift)))

	log := logger.FromContext(ctx)
	log.Info().Bool("clean", report.Clean()).Msg("Audit finished")
	return report, nil
}

// Repair audits the store and applies the fixes that cannot lose money
// records: paid bills without a settlement go back to pending, settlements
// linked to open bills are removed, and drifted derived values are written
// synchronously. Duplicate settlements and orphans are left for an operator.
func (e *Engine) Repair(ctx context.Context) (*RepairResult, error) {
	report, err := e.Audit(ctx)
	if err != nil {
		return nil, fmt.Errorf("Repair: %w", err)
	}

	defer e.cache.Invalidate(
		cache.All(cache.KindAccount),
		cache.All(cache.KindCreditCard),
		cache.All(cache.KindBill),
		cache.All(cache.KindTransaction),
	)

	var (
		res  RepairResult
		errs []error
	)

	for _, id := range report.PaidWithoutSettlement {
		err := e.store.UpdateBillStatus(ctx, id, domain.BillPending, domain.BillPaid)
		switch {
		case err == nil:
			res.BillsReopened++
		case errors.Is(err, domain.ErrStatusConflict):
		default:
			errs = append(errs, fmt.Errorf("reopen bill %s: %w", id, err))
		}
	}

	for _, id := range report.OpenWithSettlement {
		n, err := e.store.DeleteTransactionsByBill(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("remove settlements of bill %s: %w", id, err))
			continue
		}
		res.SettlementsRemoved += int(n)
	}

	// Bill fixes above change balances, so recompute rather than reuse the report.
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list accounts: %w", err))
	}
	for _, a := range accounts {
		computed, err := e.accountBalance(ctx, a.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !e.drifted(computed, a.Balance) {
			continue
		}
		if err := e.store.UpdateAccountBalance(ctx, a.ID, computed); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", a.ID, err))
			continue
		}
		res.BalancesFixed++
	}

	cards, err := e.store.ListCreditCards(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list cards: %w", err))
	}
	for _, c := range cards {
		computed, err := e.cardUsage(ctx, c.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !e.drifted(computed, c.UsedAmount) {
			continue
		}
		if err := e.store.UpdateCreditCardUsedAmount(ctx, c.ID, computed); err != nil {
			errs = append(errs, fmt.Errorf("card %s: %w", c.ID, err))
			continue
		}
		res.UsedAmountsFixed++
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("bills_reopened", res.BillsReopened).
		Int("settlements_removed", res.SettlementsRemoved).
		Int("balances_fixed", res.BalancesFixed).
		Int("used_amounts_fixed", res.UsedAmountsFixed).
		Msg("Repair finished")

	if len(errs) > 0 {
		return &res, fmt.Errorf("Repair: %w", errors.Join(errs...))
	}
	return &res, nil
}
