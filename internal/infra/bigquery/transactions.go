package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	AccountID    bigquery.NullString `bigquery:"account_id"`     // NULLABLE
	CreditCardID bigquery.NullString `bigquery:"credit_card_id"` // NULLABLE
	BillID       bigquery.NullString `bigquery:"bill_id"`        // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC, always positive
	Direction string   `bigquery:"direction"` // REQUIRED: income | expense
	Status    string   `bigquery:"status"`    // REQUIRED: pending | completed | cancelled
	Kind      string   `bigquery:"kind"`      // REQUIRED: regular | settlement

	Description string `bigquery:"description"` // REQUIRED STRING

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func transactionRowFromDomain(t *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   t.ID,
		AccountID:       nullString(t.AccountID),
		CreditCardID:    nullString(t.CreditCardID),
		BillID:          nullString(t.BillID),
		TransactionDate: dateOf(t.Date),
		Amount:          ratFromDecimal(t.Amount),
		Direction:       string(t.Type),
		Status:          string(t.Status),
		Kind:            string(t.Kind),
		Description:     t.Description,
		CreatedTS:       t.CreatedAt,
		UpdatedTS:       nullTimestamp(t.UpdatedAt),
	}
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:           r.TransactionID,
		Description:  r.Description,
		Amount:       decimalFromRat(r.Amount),
		Type:         domain.TransactionType(r.Direction),
		Status:       domain.TransactionStatus(r.Status),
		Kind:         domain.TransactionKind(r.Kind),
		AccountID:    r.AccountID.StringVal,
		CreditCardID: r.CreditCardID.StringVal,
		BillID:       r.BillID.StringVal,
		Date:         timeOfDate(r.TransactionDate),
		CreatedAt:    r.CreatedTS,
		UpdatedAt:    timestampOrZero(r.UpdatedTS),
	}
}
