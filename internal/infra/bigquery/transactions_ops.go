package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
)

const transactionColumns = `
	transaction_id,
	account_id,
	credit_card_id,
	bill_id,
	transaction_date,
	amount,
	direction,
	status,
	kind,
	description,
	created_ts,
	updated_ts`

// transactionFilterSQL builds the WHERE clause and parameters for an equality filter.
func transactionFilterSQL(f store.TransactionFilter) (string, []bigquery.QueryParameter) {
	var (
		conds  []string
		params []bigquery.QueryParameter
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		conds = append(conds, column+" = @"+column)
		params = append(params, bigquery.QueryParameter{Name: column, Value: value})
	}
	add("account_id", f.AccountID)
	add("credit_card_id", f.CreditCardID)
	add("bill_id", f.BillID)
	add("status", string(f.Status))
	add("direction", string(f.Type))
	add("kind", string(f.Kind))

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), params
}

func (s *BigQueryStore) queryTransactions(ctx context.Context, f store.TransactionFilter) ([]*domain.Transaction, error) {
	where, params := transactionFilterSQL(f)
	q := s.client.Query(`
		SELECT` + transactionColumns + `
		FROM ` + s.table(transactionsTable) + `
		` + where + `
		ORDER BY transaction_date, transaction_id
	`)
	q.Parameters = params

	rows, err := readAll[TransactionRow](ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListTransactionsByAccount implements store.TransactionRepository.
func (s *BigQueryStore) ListTransactionsByAccount(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	out, err := s.queryTransactions(ctx, store.TransactionFilter{AccountID: accountID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByAccount: %w", err)
	}
	return out, nil
}

// ListTransactionsByCreditCard implements store.TransactionRepository.
func (s *BigQueryStore) ListTransactionsByCreditCard(ctx context.Context, cardID string, typ domain.TransactionType) ([]*domain.Transaction, error) {
	out, err := s.queryTransactions(ctx, store.TransactionFilter{CreditCardID: cardID, Type: typ})
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByCreditCard: %w", err)
	}
	return out, nil
}

// ListTransactionsByBill implements store.TransactionRepository.
func (s *BigQueryStore) ListTransactionsByBill(ctx context.Context, billID string) ([]*domain.Transaction, error) {
	out, err := s.queryTransactions(ctx, store.TransactionFilter{BillID: billID})
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByBill: %w", err)
	}
	return out, nil
}

// ListTransactions implements store.TransactionRepository.
func (s *BigQueryStore) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	out, err := s.queryTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return out, nil
}

// InsertTransaction implements store.TransactionRepository.
// It uses a DML INSERT rather than the streaming inserter: streamed rows
// cannot be updated or deleted until they leave the streaming buffer.
func (s *BigQueryStore) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	row := transactionRowFromDomain(t)

	q := s.client.Query(`
		INSERT INTO ` + s.table(transactionsTable) + ` (` + transactionColumns + `
		)
		VALUES (
			@transaction_id, @account_id, @credit_card_id, @bill_id,
			@transaction_date, @amount, @direction, @status, @kind,
			@description, @created_ts, @updated_ts
		)
	`)
	q.Parameters = transactionParams(row, true)

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *BigQueryStore) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	row := transactionRowFromDomain(t)

	q := s.client.Query(`
		UPDATE ` + s.table(transactionsTable) + `
		SET
			account_id = @account_id,
			credit_card_id = @credit_card_id,
			bill_id = @bill_id,
			transaction_date = @transaction_date,
			amount = @amount,
			direction = @direction,
			status = @status,
			kind = @kind,
			description = @description,
			updated_ts = @updated_ts
		WHERE transaction_id = @transaction_id
	`)
	q.Parameters = transactionParams(row, false)

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteTransaction implements store.TransactionRepository.
func (s *BigQueryStore) DeleteTransaction(ctx context.Context, id string) error {
	n, err := s.deleteWhere(ctx, transactionsTable, "transaction_id", id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTransactionsByBill implements store.TransactionRepository.
func (s *BigQueryStore) DeleteTransactionsByBill(ctx context.Context, billID string) (int64, error) {
	n, err := s.deleteWhere(ctx, transactionsTable, "bill_id", billID)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByBill: %w", err)
	}
	return n, nil
}

// transactionParams binds every column. created_ts is left out of updates
// because it never changes.
func transactionParams(row *TransactionRow, withCreated bool) []bigquery.QueryParameter {
	params := []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "account_id", Value: row.AccountID},
		{Name: "credit_card_id", Value: row.CreditCardID},
		{Name: "bill_id", Value: row.BillID},
		{Name: "transaction_date", Value: row.TransactionDate},
		{Name: "amount", Value: row.Amount},
		{Name: "direction", Value: row.Direction},
		{Name: "status", Value: row.Status},
		{Name: "kind", Value: row.Kind},
		{Name: "description", Value: row.Description},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
	if withCreated {
		params = append(params, bigquery.QueryParameter{Name: "created_ts", Value: row.CreatedTS})
	}
	return params
}
