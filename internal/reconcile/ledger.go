package reconcile

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// CreateAccount stores a new account. A non-zero Balance on input is recorded
// as an opening transaction so the balance stays derived from the ledger.
func (e *Engine) CreateAccount(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	opening := a.Balance
	now := e.now().UTC()
	a.ID = e.newID()
	a.Balance = decimal.Zero
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := e.store.InsertAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	if opening.IsZero() {
		return a, nil
	}

	t := &domain.Transaction{
		ID:          e.newID(),
		Description: "Opening balance",
		Amount:      opening.Abs(),
		Type:        domain.TransactionIncome,
		Status:      domain.TransactionCompleted,
		Kind:        domain.KindRegular,
		AccountID:   a.ID,
		Date:        now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opening.IsNegative() {
		t.Type = domain.TransactionExpense
	}
	if err := e.store.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("CreateAccount: opening balance: %w", err)
	}
	if err := e.store.UpdateAccountBalance(ctx, a.ID, opening); err != nil {
		// The next read recomputes the balance from the opening transaction.
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("account_id", a.ID).Msg("Opening balance not cached")
	}
	a.Balance = opening
	return a, nil
}

// DeleteAccount removes an account. Its transactions are kept and remain
// queryable by account id.
func (e *Engine) DeleteAccount(ctx context.Context, id string) error {
	if err := e.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	e.cache.Invalidate(cache.Key{Kind: cache.KindAccount, ID: id})
	return nil
}

// CreateCreditCard stores a new card with no usage.
func (e *Engine) CreateCreditCard(ctx context.Context, c *domain.CreditCard) (*domain.CreditCard, error) {
	if c.Status == "" {
		c.Status = domain.CardActive
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("CreateCreditCard: %w", err)
	}

	now := e.now().UTC()
	c.ID = e.newID()
	c.UsedAmount = decimal.Zero
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := e.store.InsertCreditCard(ctx, c); err != nil {
		return nil, fmt.Errorf("CreateCreditCard: %w", err)
	}
	return c, nil
}

// ListTransactions returns transactions matching filter.
func (e *Engine) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	txs, err := e.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// CreateTransaction validates and stores a new transaction. Referenced
// accounts, cards and bills must exist.
func (e *Engine) CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	t.ApplyDefaults(e.now())
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	if err := e.checkReferences(ctx, t, nil); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}

	now := e.now().UTC()
	t.ID = e.newID()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := e.store.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	e.cache.Invalidate(transactionKeys(t)...)
	return t, nil
}

// UpdateTransaction overwrites an existing transaction. Entities linked before
// and after the change are both invalidated.
func (e *Engine) UpdateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	before, err := e.findTransaction(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	t.ApplyDefaults(before.Date)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	if err := e.checkReferences(ctx, t, before); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	t.CreatedAt = before.CreatedAt
	t.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	e.cache.Invalidate(append(transactionKeys(before), transactionKeys(t)...)...)
	return t, nil
}

// DeleteTransaction removes a transaction and invalidates what it touched.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	t, err := e.findTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if err := e.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	e.cache.Invalidate(transactionKeys(t)...)
	return nil
}

// findTransaction has no direct lookup in the store contract, so it scans the
// smallest equality filter it can.
func (e *Engine) findTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	txs, err := e.store.ListTransactions(ctx, store.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
}

// checkReferences verifies that linked entities exist. References unchanged
// from before are not rechecked, so orphans stay editable.
func (e *Engine) checkReferences(ctx context.Context, t, before *domain.Transaction) error {
	if before == nil {
		before = &domain.Transaction{}
	}
	if t.AccountID != "" && t.AccountID != before.AccountID {
		if _, err := e.store.GetAccount(ctx, t.AccountID); err != nil {
			return fmt.Errorf("account reference: %w", err)
		}
	}
	if t.CreditCardID != "" && t.CreditCardID != before.CreditCardID {
		if _, err := e.store.GetCreditCard(ctx, t.CreditCardID); err != nil {
			return fmt.Errorf("credit card reference: %w", err)
		}
	}
	if t.BillID != "" && t.BillID != before.BillID {
		if _, err := e.store.GetBill(ctx, t.BillID); err != nil {
			return fmt.Errorf("bill reference: %w", err)
		}
	}
	return nil
}

// transactionKeys is the invalidation list of a transaction write.
func transactionKeys(t *domain.Transaction) []cache.Key {
	keys := []cache.Key{{Kind: cache.KindTransaction, ID: t.ID}}
	if t.AccountID != "" {
		keys = append(keys, cache.Key{Kind: cache.KindAccount, ID: t.AccountID})
	}
	if t.CreditCardID != "" {
		keys = append(keys, cache.Key{Kind: cache.KindCreditCard, ID: t.CreditCardID})
	}
	if t.BillID != "" {
		keys = append(keys, cache.Key{Kind: cache.KindBill, ID: t.BillID})
	}
	return keys
}
