package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
)

const transactionColumns = `id, description, amount, type, status, kind, account_id, credit_card_id, bill_id, date, created_at, updated_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                         domain.Transaction
		typ, status, kind         string
		accountID, cardID, billID sql.NullString
		date, created, updated    string
	)
	err := row.Scan(&t.ID, &t.Description, &t.Amount, &typ, &status, &kind,
		&accountID, &cardID, &billID, &date, &created, &updated)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)
	t.Kind = domain.TransactionKind(kind)
	t.AccountID = accountID.String
	t.CreditCardID = cardID.String
	t.BillID = billID.String

	if t.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("transaction %s date: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("transaction %s created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("transaction %s updated_at: %w", t.ID, err)
	}
	return &t, nil
}

func (db *DB) queryTransactions(ctx context.Context, where string, args ...interface{}) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY date, id`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactionsByAccount implements store.TransactionRepository.
func (db *DB) ListTransactionsByAccount(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	out, err := db.queryTransactions(ctx, `account_id = ? AND status = ?`, accountID, string(status))
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByAccount: %w", err)
	}
	return out, nil
}

// ListTransactionsByCreditCard implements store.TransactionRepository.
func (db *DB) ListTransactionsByCreditCard(ctx context.Context, cardID string, typ domain.TransactionType) ([]*domain.Transaction, error) {
	out, err := db.queryTransactions(ctx, `credit_card_id = ? AND type = ?`, cardID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByCreditCard: %w", err)
	}
	return out, nil
}

// ListTransactionsByBill implements store.TransactionRepository.
func (db *DB) ListTransactionsByBill(ctx context.Context, billID string) ([]*domain.Transaction, error) {
	out, err := db.queryTransactions(ctx, `bill_id = ?`, billID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByBill: %w", err)
	}
	return out, nil
}

// ListTransactions implements store.TransactionRepository.
func (db *DB) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		conds = append(conds, column+" = ?")
		args = append(args, value)
	}
	add("account_id", filter.AccountID)
	add("credit_card_id", filter.CreditCardID)
	add("bill_id", filter.BillID)
	add("status", string(filter.Status))
	add("type", string(filter.Type))
	add("kind", string(filter.Kind))

	out, err := db.queryTransactions(ctx, strings.Join(conds, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return out, nil
}

// InsertTransaction implements store.TransactionRepository.
func (db *DB) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (`+placeholders(12)+`)
	`,
		t.ID, t.Description, t.Amount, string(t.Type), string(t.Status), string(t.Kind),
		nullable(t.AccountID), nullable(t.CreditCardID), nullable(t.BillID),
		formatTime(t.Date), formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

// UpdateTransaction implements store.TransactionRepository.
func (db *DB) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	ok, err := db.execOne(ctx, `
		UPDATE transactions SET
			description = ?, amount = ?, type = ?, status = ?, kind = ?,
			account_id = ?, credit_card_id = ?, bill_id = ?,
			date = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Description, t.Amount, string(t.Type), string(t.Status), string(t.Kind),
		nullable(t.AccountID), nullable(t.CreditCardID), nullable(t.BillID),
		formatTime(t.Date), formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteTransaction implements store.TransactionRepository.
func (db *DB) DeleteTransaction(ctx context.Context, id string) error {
	ok, err := db.execOne(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTransactionsByBill implements store.TransactionRepository.
func (db *DB) DeleteTransactionsByBill(ctx context.Context, billID string) (int64, error) {
	res, err := db.db.ExecContext(ctx, `DELETE FROM transactions WHERE bill_id = ?`, billID)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByBill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByBill: rows affected: %w", err)
	}
	return n, nil
}
