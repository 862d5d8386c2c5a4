package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

type AccountRow struct {
	AccountID string `bigquery:"account_id"` // REQUIRED

	AccountName string `bigquery:"account_name"` // REQUIRED
	AccountType string `bigquery:"account_type"` // REQUIRED

	Balance *big.Rat `bigquery:"balance"` // REQUIRED NUMERIC, derived

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func accountRowFromDomain(a *domain.Account) *AccountRow {
	return &AccountRow{
		AccountID:   a.ID,
		AccountName: a.Name,
		AccountType: string(a.Type),
		Balance:     ratFromDecimal(a.Balance),
		CreatedTS:   a.CreatedAt,
		UpdatedTS:   nullTimestamp(a.UpdatedAt),
	}
}

func (r *AccountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:        r.AccountID,
		Name:      r.AccountName,
		Type:      domain.AccountType(r.AccountType),
		Balance:   decimalFromRat(r.Balance),
		CreatedAt: r.CreatedTS,
		UpdatedAt: timestampOrZero(r.UpdatedTS),
	}
}
