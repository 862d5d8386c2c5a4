package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const cardColumns = `id, name, card_limit, used_amount, due_day, closing_day, status, created_at, updated_at`

func scanCard(row rowScanner) (*domain.CreditCard, error) {
	var (
		c                domain.CreditCard
		status           string
		created, updated string
	)
	err := row.Scan(&c.ID, &c.Name, &c.CardLimit, &c.UsedAmount, &c.DueDay, &c.ClosingDay, &status, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CardStatus(status)

	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("card %s created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("card %s updated_at: %w", c.ID, err)
	}
	return &c, nil
}

// ListCreditCards implements store.CreditCardRepository.
func (db *DB) ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM credit_cards ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ListCreditCards: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("ListCreditCards: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCreditCards: %w", err)
	}
	return out, nil
}

// GetCreditCard implements store.CreditCardRepository.
func (db *DB) GetCreditCard(ctx context.Context, id string) (*domain.CreditCard, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("credit card %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetCreditCard: %w", err)
	}
	return c, nil
}

// InsertCreditCard implements store.CreditCardRepository.
func (db *DB) InsertCreditCard(ctx context.Context, c *domain.CreditCard) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO credit_cards (`+cardColumns+`)
		VALUES (`+placeholders(9)+`)
	`, c.ID, c.Name, c.CardLimit, c.UsedAmount, c.DueDay, c.ClosingDay, string(c.Status),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("InsertCreditCard: %w", err)
	}
	return nil
}

// UpdateCreditCardUsedAmount implements store.CreditCardRepository.
func (db *DB) UpdateCreditCardUsedAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	ok, err := db.execOne(ctx, `UPDATE credit_cards SET used_amount = ?, updated_at = ? WHERE id = ?`,
		amount, formatTime(db.now()), id)
	if err != nil {
		return fmt.Errorf("UpdateCreditCardUsedAmount: %w", err)
	}
	if !ok {
		return fmt.Errorf("credit card %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
