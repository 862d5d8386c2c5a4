package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/observability"
	"github.com/dvloznov/finance-ledger/internal/store"
)

// RevertResult describes a completed bill reversal.
type RevertResult struct {
	Bill                *domain.Bill `json:"bill"`
	DeletedTransactions int64        `json:"deleted_transactions"`
}

// PayBill marks a bill paid and records its settlement transaction against
// accountID.
//
// The status flip happens first and is conditional on the bill still being
// pending or overdue, so of two concurrent payments only one creates a
// settlement. A failure creating the transaction leaves the bill paid with no
// settlement and is reported as a *PartialFailureError.
func (e *Engine) PayBill(ctx context.Context, billID, accountID string, date time.Time) (*domain.Transaction, error) {
	log := logger.FromContext(ctx).With().Str("bill_id", billID).Str("account_id", accountID).Logger()
	fields := map[string]interface{}{"bill_id": billID, "account_id": accountID}

	if accountID == "" {
		return nil, fmt.Errorf("PayBill: %w: account id is required", domain.ErrInvalid)
	}

	bill, err := e.store.GetBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("PayBill: load bill: %w", err)
	}
	if !bill.Status.Payable() {
		observability.DuplicatePaymentsRejected.Inc()
		return nil, fmt.Errorf("PayBill: bill %s is %s: %w", billID, bill.Status, domain.ErrStatusConflict)
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("PayBill: load account: %w", err)
	}

	if err := e.store.UpdateBillStatus(ctx, billID, domain.BillPaid, domain.BillPending, domain.BillOverdue); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			observability.DuplicatePaymentsRejected.Inc()
			log.Info().Msg("Bill payment lost the status race")
		}
		return nil, fmt.Errorf("PayBill: mark paid: %w", err)
	}

	keys := billKeys(bill, accountID)
	defer e.cache.Invalidate(keys...)

	completed := []string{StepMarkPaid}

	existing, err := e.store.ListTransactionsByBill(ctx, billID)
	if err != nil {
		return nil, partial(ctx, OpPayBill, completed, StepCreateSettlement, err, fields)
	}
	for _, t := range existing {
		if t.IsSettlement() {
			log.Warn().Str("transaction_id", t.ID).Msg("Bill already had a settlement, reusing it")
			return t, nil
		}
	}

	if date.IsZero() {
		date = e.now()
	}
	now := e.now().UTC()
	settlement := &domain.Transaction{
		ID:           e.newID(),
		Description:  "Payment: " + bill.Description,
		Amount:       bill.Amount,
		Type:         domain.TransactionExpense,
		Status:       domain.TransactionCompleted,
		Kind:         domain.KindSettlement,
		AccountID:    accountID,
		CreditCardID: bill.CreditCardID,
		BillID:       billID,
		Date:         date,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.InsertTransaction(ctx, settlement); err != nil {
		return nil, partial(ctx, OpPayBill, completed, StepCreateSettlement, err, fields)
	}

	log.Info().
		Str("transaction_id", settlement.ID).
		Str("amount", settlement.Amount.String()).
		Msg("Bill paid")
	return settlement, nil
}

// RevertBill undoes a payment: it deletes the bill's linked transactions and
// returns the bill to pending. Reverting a bill that is already pending with
// no transactions succeeds without changes.
func (e *Engine) RevertBill(ctx context.Context, billID string) (*RevertResult, error) {
	log := logger.FromContext(ctx).With().Str("bill_id", billID).Logger()
	fields := map[string]interface{}{"bill_id": billID}

	bill, err := e.store.GetBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("RevertBill: load bill: %w", err)
	}

	linked, err := e.store.ListTransactionsByBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("RevertBill: list transactions: %w", err)
	}

	keys := []cache.Key{{Kind: cache.KindBill, ID: billID}}
	if bill.CreditCardID != "" {
		keys = append(keys, cache.Key{Kind: cache.KindCreditCard, ID: bill.CreditCardID})
	}
	for _, t := range linked {
		keys = append(keys, transactionKeys(t)...)
	}

	deleted, err := e.store.DeleteTransactionsByBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("RevertBill: delete transactions: %w", err)
	}
	defer e.cache.Invalidate(keys...)

	completed := []string{StepDeleteSettlement}

	if err := e.store.UpdateBillStatus(ctx, billID, domain.BillPending, domain.BillPaid); err != nil {
		if !errors.Is(err, domain.ErrStatusConflict) {
			return nil, partial(ctx, OpRevertBill, completed, StepResetStatus, err, fields)
		}
		log.Debug().Str("status", string(bill.Status)).Msg("Bill was not paid, status left as is")
	} else {
		bill.Status = domain.BillPending
		bill.UpdatedAt = e.now().UTC()
	}

	log.Info().Int64("deleted", deleted).Msg("Bill reverted")
	return &RevertResult{Bill: bill, DeletedTransactions: deleted}, nil
}

// RefreshOverdue flips pending bills due before asOf to overdue and returns
// how many changed. Bills that changed status concurrently are skipped.
func (e *Engine) RefreshOverdue(ctx context.Context, asOf time.Time) (int, error) {
	log := logger.FromContext(ctx)

	bills, err := e.store.ListBills(ctx, store.BillFilter{Status: domain.BillPending})
	if err != nil {
		return 0, fmt.Errorf("RefreshOverdue: list bills: %w", err)
	}

	var (
		flipped int
		errs    []error
	)
	for _, b := range bills {
		if !b.IsOverdue(asOf) {
			continue
		}
		err := e.store.UpdateBillStatus(ctx, b.ID, domain.BillOverdue, domain.BillPending)
		switch {
		case err == nil:
			flipped++
			e.cache.Invalidate(cache.Key{Kind: cache.KindBill, ID: b.ID})
		case errors.Is(err, domain.ErrStatusConflict), errors.Is(err, domain.ErrNotFound):
			log.Debug().Str("bill_id", b.ID).Msg("Bill changed before overdue flip")
		default:
			errs = append(errs, fmt.Errorf("bill %s: %w", b.ID, err))
		}
	}

	log.Info().Int("flipped", flipped).Time("as_of", asOf).Msg("Overdue refresh finished")
	if len(errs) > 0 {
		return flipped, fmt.Errorf("RefreshOverdue: %w", errors.Join(errs...))
	}
	return flipped, nil
}

// GetBill returns a bill, served from the cache when possible.
func (e *Engine) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	b, err := cache.GetTyped(ctx, e.cache, cache.Key{Kind: cache.KindBill, ID: id}, func(ctx context.Context) (domain.Bill, error) {
		b, err := e.store.GetBill(ctx, id)
		if err != nil {
			return domain.Bill{}, err
		}
		return *b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("GetBill: %w", err)
	}
	return &b, nil
}

// ListBills returns bills matching filter.
func (e *Engine) ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error) {
	bills, err := e.store.ListBills(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ListBills: %w", err)
	}
	return bills, nil
}

// CreateBill validates and stores a new bill. The status defaults to pending.
func (e *Engine) CreateBill(ctx context.Context, b *domain.Bill) (*domain.Bill, error) {
	if b.Status == "" {
		b.Status = domain.BillPending
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("CreateBill: %w", err)
	}
	if b.CreditCardID != "" {
		if _, err := e.store.GetCreditCard(ctx, b.CreditCardID); err != nil {
			return nil, fmt.Errorf("CreateBill: load card: %w", err)
		}
	}

	now := e.now().UTC()
	b.ID = e.newID()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := e.store.InsertBill(ctx, b); err != nil {
		return nil, fmt.Errorf("CreateBill: %w", err)
	}
	return b, nil
}

// billKeys is the invalidation list of a bill payment.
func billKeys(b *domain.Bill, accountID string) []cache.Key {
	keys := []cache.Key{
		{Kind: cache.KindBill, ID: b.ID},
		{Kind: cache.KindAccount, ID: accountID},
	}
	if b.CreditCardID != "" {
		keys = append(keys, cache.Key{Kind: cache.KindCreditCard, ID: b.CreditCardID})
	}
	return keys
}
