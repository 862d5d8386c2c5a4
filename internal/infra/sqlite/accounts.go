package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, type, balance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                domain.Account
		typ              string
		created, updated string
	)
	if err := row.Scan(&a.ID, &a.Name, &typ, &a.Balance, &created, &updated); err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)

	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("account %s created_at: %w", a.ID, err)
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("account %s updated_at: %w", a.ID, err)
	}
	return &a, nil
}

// ListAccounts implements store.AccountRepository.
func (db *DB) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return out, nil
}

// GetAccount implements store.AccountRepository.
func (db *DB) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// InsertAccount implements store.AccountRepository.
func (db *DB) InsertAccount(ctx context.Context, a *domain.Account) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, string(a.Type), a.Balance, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("InsertAccount: %w", err)
	}
	return nil
}

// DeleteAccount implements store.AccountRepository. Transactions are not touched.
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	ok, err := db.execOne(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateAccountBalance implements store.AccountRepository.
func (db *DB) UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	ok, err := db.execOne(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance, formatTime(db.now()), id)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
