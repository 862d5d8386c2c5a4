package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

type CreditCardRow struct {
	CreditCardID string `bigquery:"credit_card_id"` // REQUIRED

	CardName string `bigquery:"card_name"` // REQUIRED

	CardLimit  *big.Rat `bigquery:"card_limit"`  // REQUIRED NUMERIC
	UsedAmount *big.Rat `bigquery:"used_amount"` // REQUIRED NUMERIC, derived

	DueDay     int64 `bigquery:"due_day"`     // REQUIRED 1..31
	ClosingDay int64 `bigquery:"closing_day"` // REQUIRED 1..31

	Status string `bigquery:"status"` // REQUIRED: active | blocked

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func creditCardRowFromDomain(c *domain.CreditCard) *CreditCardRow {
	return &CreditCardRow{
		CreditCardID: c.ID,
		CardName:     c.Name,
		CardLimit:    ratFromDecimal(c.CardLimit),
		UsedAmount:   ratFromDecimal(c.UsedAmount),
		DueDay:       int64(c.DueDay),
		ClosingDay:   int64(c.ClosingDay),
		Status:       string(c.Status),
		CreatedTS:    c.CreatedAt,
		UpdatedTS:    nullTimestamp(c.UpdatedAt),
	}
}

func (r *CreditCardRow) toDomain() *domain.CreditCard {
	return &domain.CreditCard{
		ID:         r.CreditCardID,
		Name:       r.CardName,
		CardLimit:  decimalFromRat(r.CardLimit),
		UsedAmount: decimalFromRat(r.UsedAmount),
		DueDay:     int(r.DueDay),
		ClosingDay: int(r.ClosingDay),
		Status:     domain.CardStatus(r.Status),
		CreatedAt:  r.CreatedTS,
		UpdatedAt:  timestampOrZero(r.UpdatedTS),
	}
}
