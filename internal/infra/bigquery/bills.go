package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

type BillRow struct {
	BillID string `bigquery:"bill_id"` // REQUIRED

	Description string     `bigquery:"description"` // REQUIRED STRING
	Amount      *big.Rat   `bigquery:"amount"`      // REQUIRED NUMERIC
	DueDate     civil.Date `bigquery:"due_date"`    // REQUIRED DATE

	Status              string              `bigquery:"status"`                // REQUIRED: pending | paid | overdue
	CreditCardID        bigquery.NullString `bigquery:"credit_card_id"`        // NULLABLE
	InvoiceSettlementID bigquery.NullString `bigquery:"invoice_settlement_id"` // NULLABLE: set by card invoice payment

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func billRowFromDomain(b *domain.Bill) *BillRow {
	return &BillRow{
		BillID:              b.ID,
		Description:         b.Description,
		Amount:              ratFromDecimal(b.Amount),
		DueDate:             dateOf(b.DueDate),
		Status:              string(b.Status),
		CreditCardID:        nullString(b.CreditCardID),
		InvoiceSettlementID: nullString(b.InvoiceSettlementID),
		CreatedTS:           b.CreatedAt,
		UpdatedTS:           nullTimestamp(b.UpdatedAt),
	}
}

func (r *BillRow) toDomain() *domain.Bill {
	return &domain.Bill{
		ID:                  r.BillID,
		Description:         r.Description,
		Amount:              decimalFromRat(r.Amount),
		DueDate:             timeOfDate(r.DueDate),
		Status:              domain.BillStatus(r.Status),
		CreditCardID:        r.CreditCardID.StringVal,
		InvoiceSettlementID: r.InvoiceSettlementID.StringVal,
		CreatedAt:           r.CreatedTS,
		UpdatedAt:           timestampOrZero(r.UpdatedTS),
	}
}
