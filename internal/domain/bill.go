package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the payment state of a bill.
type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
	BillOverdue BillStatus = "overdue"
)

// Payable reports whether a bill in status s may be paid.
func (s BillStatus) Payable() bool {
	return s == BillPending || s == BillOverdue
}

// Bill is an amount owed. A paid bill is linked to exactly one settlement
// transaction through Transaction.BillID, unless it belongs to a card and was
// settled by that card's invoice payment, in which case InvoiceSettlementID
// names the invoice settlement. Any other status change clears it.
type Bill struct {
	ID                  string          `json:"id"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	DueDate             time.Time       `json:"due_date"`
	Status              BillStatus      `json:"status"`
	CreditCardID        string          `json:"credit_card_id,omitempty"`
	InvoiceSettlementID string          `json:"invoice_settlement_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Validate checks field values before the bill is written.
func (b *Bill) Validate() error {
	if !b.Amount.IsPositive() {
		return fmt.Errorf("%w: bill amount must be positive, got %s", ErrInvalid, b.Amount)
	}
	switch b.Status {
	case BillPending, BillPaid, BillOverdue:
	default:
		return fmt.Errorf("%w: unknown bill status %q", ErrInvalid, b.Status)
	}
	return nil
}

// IsOverdue reports whether a pending bill is past its due date on asOf.
// Due dates are compared by calendar day.
func (b *Bill) IsOverdue(asOf time.Time) bool {
	if b.Status != BillPending || b.DueDate.IsZero() {
		return false
	}
	due := truncateDay(b.DueDate)
	return truncateDay(asOf).After(due)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
