package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// TransactionKind separates ordinary ledger entries from settlements created by
// bill and invoice payments.
type TransactionKind string

const (
	KindRegular    TransactionKind = "regular"
	KindSettlement TransactionKind = "settlement"
)

// Transaction is one ledger entry. Amount is always positive; Type carries the sign.
// AccountID, CreditCardID and BillID are empty when unset.
type Transaction struct {
	ID           string            `json:"id"`
	Description  string            `json:"description"`
	Amount       decimal.Decimal   `json:"amount"`
	Type         TransactionType   `json:"type"`
	Status       TransactionStatus `json:"status"`
	Kind         TransactionKind   `json:"kind"`
	AccountID    string            `json:"account_id,omitempty"`
	CreditCardID string            `json:"credit_card_id,omitempty"`
	BillID       string            `json:"bill_id,omitempty"`
	Date         time.Time         `json:"date"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsSettlement reports whether t was created by a payment operation.
func (t *Transaction) IsSettlement() bool {
	return t.Kind == KindSettlement
}

// Signed returns the amount with income positive and expense negative.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate checks field values before the transaction is written.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalid, t.Amount)
	}
	switch t.Type {
	case TransactionIncome, TransactionExpense:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalid, t.Type)
	}
	switch t.Status {
	case TransactionPending, TransactionCompleted, TransactionCancelled:
	default:
		return fmt.Errorf("%w: unknown transaction status %q", ErrInvalid, t.Status)
	}
	switch t.Kind {
	case KindRegular, KindSettlement:
	default:
		return fmt.Errorf("%w: unknown transaction kind %q", ErrInvalid, t.Kind)
	}
	if t.AccountID == "" && t.CreditCardID == "" {
		return fmt.Errorf("%w: transaction needs an account or a credit card", ErrInvalid)
	}
	return nil
}

// ApplyDefaults fills status, kind and date when the caller left them empty.
func (t *Transaction) ApplyDefaults(now time.Time) {
	if t.Status == "" {
		t.Status = TransactionCompleted
	}
	if t.Kind == "" {
		t.Kind = KindRegular
	}
	if t.Date.IsZero() {
		t.Date = now
	}
}
