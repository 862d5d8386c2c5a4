// Package store defines the tabular data store contract consumed by the
// reconciliation engine. Every lookup is an equality filter; there are no
// cross-table transactions.
package store

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountRepository provides account operations.
type AccountRepository interface {
	// ListAccounts returns all accounts with their stored balances.
	ListAccounts(ctx context.Context) ([]*domain.Account, error)

	// GetAccount returns one account or domain.ErrNotFound.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// InsertAccount stores a new account.
	InsertAccount(ctx context.Context, a *domain.Account) error

	// DeleteAccount removes an account. Transactions referencing it are left untouched.
	DeleteAccount(ctx context.Context, id string) error

	// UpdateAccountBalance overwrites the cached balance.
	UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error
}

// TransactionRepository provides transaction operations.
type TransactionRepository interface {
	// ListTransactionsByAccount returns transactions with the given account_id and status.
	ListTransactionsByAccount(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*domain.Transaction, error)

	// ListTransactionsByCreditCard returns transactions with the given credit_card_id and type.
	ListTransactionsByCreditCard(ctx context.Context, cardID string, typ domain.TransactionType) ([]*domain.Transaction, error)

	// ListTransactionsByBill returns transactions with the given bill_id.
	ListTransactionsByBill(ctx context.Context, billID string) ([]*domain.Transaction, error)

	// ListTransactions returns transactions matching every non-empty filter field.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)

	// InsertTransaction stores a new transaction.
	InsertTransaction(ctx context.Context, t *domain.Transaction) error

	// UpdateTransaction overwrites an existing transaction by id.
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error

	// DeleteTransaction removes a transaction by id.
	DeleteTransaction(ctx context.Context, id string) error

	// DeleteTransactionsByBill removes every transaction linked to billID and
	// returns how many were deleted. Zero is not an error.
	DeleteTransactionsByBill(ctx context.Context, billID string) (int64, error)
}

// CreditCardRepository provides credit card operations.
type CreditCardRepository interface {
	// ListCreditCards returns all cards with their stored used amounts.
	ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error)

	// GetCreditCard returns one card or domain.ErrNotFound.
	GetCreditCard(ctx context.Context, id string) (*domain.CreditCard, error)

	// InsertCreditCard stores a new card.
	InsertCreditCard(ctx context.Context, c *domain.CreditCard) error

	// UpdateCreditCardUsedAmount overwrites the cached used amount.
	UpdateCreditCardUsedAmount(ctx context.Context, id string, amount decimal.Decimal) error
}

// BillRepository provides bill operations.
type BillRepository interface {
	// ListBills returns bills matching every non-empty filter field.
	ListBills(ctx context.Context, filter BillFilter) ([]*domain.Bill, error)

	// GetBill returns one bill or domain.ErrNotFound.
	GetBill(ctx context.Context, id string) (*domain.Bill, error)

	// InsertBill stores a new bill.
	InsertBill(ctx context.Context, b *domain.Bill) error

	// UpdateBillStatus sets the bill to status `to` only if its current status
	// is one of `from`, and clears InvoiceSettlementID. It returns
	// domain.ErrStatusConflict when the bill exists but is in another status,
	// and domain.ErrNotFound when it does not exist.
	UpdateBillStatus(ctx context.Context, id string, to domain.BillStatus, from ...domain.BillStatus) error

	// MarkCreditCardBillsPaid sets every pending or overdue bill of the card to
	// paid, records settlementID as their InvoiceSettlementID and returns how
	// many rows changed.
	MarkCreditCardBillsPaid(ctx context.Context, cardID, settlementID string) (int64, error)
}

// Store is the full data store used by the engine.
type Store interface {
	AccountRepository
	TransactionRepository
	CreditCardRepository
	BillRepository

	// Close releases the underlying connection.
	Close() error
}

// TransactionFilter selects transactions by equality. Empty fields match anything.
type TransactionFilter struct {
	AccountID    string
	CreditCardID string
	BillID       string
	Status       domain.TransactionStatus
	Type         domain.TransactionType
	Kind         domain.TransactionKind
}

// Match reports whether t satisfies the filter.
func (f TransactionFilter) Match(t *domain.Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.CreditCardID != "" && t.CreditCardID != f.CreditCardID {
		return false
	}
	if f.BillID != "" && t.BillID != f.BillID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	return true
}

// BillFilter selects bills by equality. Empty fields match anything.
type BillFilter struct {
	Status       domain.BillStatus
	CreditCardID string
}

// Match reports whether b satisfies the filter.
func (f BillFilter) Match(b *domain.Bill) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.CreditCardID != "" && b.CreditCardID != f.CreditCardID {
		return false
	}
	return true
}
