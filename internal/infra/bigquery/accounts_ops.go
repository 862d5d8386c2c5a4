package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const accountColumns = `
	account_id,
	account_name,
	account_type,
	balance,
	created_ts,
	updated_ts`

// ListAccounts implements store.AccountRepository.
func (s *BigQueryStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	q := s.client.Query(`
		SELECT` + accountColumns + `
		FROM ` + s.table(accountsTable) + `
		ORDER BY created_ts, account_id
	`)

	rows, err := readAll[AccountRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}

	out := make([]*domain.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetAccount implements store.AccountRepository.
func (s *BigQueryStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	q := s.client.Query(`
		SELECT` + accountColumns + `
		FROM ` + s.table(accountsTable) + `
		WHERE account_id = @account_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: id},
	}

	rows, err := readAll[AccountRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

// InsertAccount implements store.AccountRepository.
func (s *BigQueryStore) InsertAccount(ctx context.Context, a *domain.Account) error {
	row := accountRowFromDomain(a)

	q := s.client.Query(`
		INSERT INTO ` + s.table(accountsTable) + ` (
			account_id, account_name, account_type,
			balance, created_ts, updated_ts
		)
		VALUES (
			@account_id, @account_name, @account_type,
			@balance, @created_ts, @updated_ts
		)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: row.AccountID},
		{Name: "account_name", Value: row.AccountName},
		{Name: "account_type", Value: row.AccountType},
		{Name: "balance", Value: row.Balance},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertAccount: %w", err)
	}
	return nil
}

// DeleteAccount implements store.AccountRepository. Transactions are not touched.
func (s *BigQueryStore) DeleteAccount(ctx context.Context, id string) error {
	n, err := s.deleteWhere(ctx, accountsTable, "account_id", id)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateAccountBalance implements store.AccountRepository.
func (s *BigQueryStore) UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	q := s.client.Query(`
		UPDATE ` + s.table(accountsTable) + `
		SET balance = @balance, updated_ts = @updated_ts
		WHERE account_id = @account_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "balance", Value: ratFromDecimal(balance)},
		{Name: "updated_ts", Value: s.now().UTC()},
		{Name: "account_id", Value: id},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
