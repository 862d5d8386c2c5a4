package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
)

const billColumns = `id, description, amount, due_date, status, credit_card_id, invoice_settlement_id, created_at, updated_at`

func scanBill(row rowScanner) (*domain.Bill, error) {
	var (
		b                     domain.Bill
		status                string
		cardID, settlementID  sql.NullString
		due, created, updated string
	)
	err := row.Scan(&b.ID, &b.Description, &b.Amount, &due, &status, &cardID, &settlementID, &created, &updated)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BillStatus(status)
	b.CreditCardID = cardID.String
	b.InvoiceSettlementID = settlementID.String

	if b.DueDate, err = parseTime(due); err != nil {
		return nil, fmt.Errorf("bill %s due_date: %w", b.ID, err)
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("bill %s created_at: %w", b.ID, err)
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("bill %s updated_at: %w", b.ID, err)
	}
	return &b, nil
}

// ListBills implements store.BillRepository.
func (db *DB) ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreditCardID != "" {
		conds = append(conds, "credit_card_id = ?")
		args = append(args, filter.CreditCardID)
	}

	query := `SELECT ` + billColumns + ` FROM bills`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY due_date, id`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListBills: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBills: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBills: %w", err)
	}
	return out, nil
}

// GetBill implements store.BillRepository.
func (db *DB) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	b, err := scanBill(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("bill %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetBill: %w", err)
	}
	return b, nil
}

// InsertBill implements store.BillRepository.
func (db *DB) InsertBill(ctx context.Context, b *domain.Bill) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES (`+placeholders(9)+`)
	`, b.ID, b.Description, b.Amount, formatTime(b.DueDate), string(b.Status),
		nullable(b.CreditCardID), nullable(b.InvoiceSettlementID),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("InsertBill: %w", err)
	}
	return nil
}

// UpdateBillStatus implements store.BillRepository. The status check is part
// of the UPDATE's WHERE clause, so concurrent callers cannot both succeed.
func (db *DB) UpdateBillStatus(ctx context.Context, id string, to domain.BillStatus, from ...domain.BillStatus) error {
	query := `UPDATE bills SET status = ?, invoice_settlement_id = NULL, updated_at = ? WHERE id = ?`
	args := []interface{}{string(to), formatTime(db.now()), id}
	if len(from) > 0 {
		query += ` AND status IN (` + placeholders(len(from)) + `)`
		for _, s := range from {
			args = append(args, string(s))
		}
	}

	ok, err := db.execOne(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("UpdateBillStatus: %w", err)
	}
	if ok {
		return nil
	}

	// No row matched: tell a missing bill from one in another status.
	var current string
	err = db.db.QueryRowContext(ctx, `SELECT status FROM bills WHERE id = ?`, id).Scan(&current)
	if isNoRows(err) {
		return fmt.Errorf("bill %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("UpdateBillStatus: read status: %w", err)
	}
	return fmt.Errorf("bill %s is %s: %w", id, current, domain.ErrStatusConflict)
}

// MarkCreditCardBillsPaid implements store.BillRepository.
func (db *DB) MarkCreditCardBillsPaid(ctx context.Context, cardID, settlementID string) (int64, error) {
	res, err := db.db.ExecContext(ctx, `
		UPDATE bills SET status = ?, invoice_settlement_id = ?, updated_at = ?
		WHERE credit_card_id = ? AND status IN (?, ?)
	`, string(domain.BillPaid), nullable(settlementID), formatTime(db.now()), cardID,
		string(domain.BillPending), string(domain.BillOverdue))
	if err != nil {
		return 0, fmt.Errorf("MarkCreditCardBillsPaid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("MarkCreditCardBillsPaid: rows affected: %w", err)
	}
	return n, nil
}
