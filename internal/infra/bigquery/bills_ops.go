package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
)

const billColumns = `
	bill_id,
	description,
	amount,
	due_date,
	status,
	credit_card_id,
	invoice_settlement_id,
	created_ts,
	updated_ts`

// ListBills implements store.BillRepository.
func (s *BigQueryStore) ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error) {
	var (
		conds  []string
		params []bigquery.QueryParameter
	)
	if filter.Status != "" {
		conds = append(conds, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(filter.Status)})
	}
	if filter.CreditCardID != "" {
		conds = append(conds, "credit_card_id = @credit_card_id")
		params = append(params, bigquery.QueryParameter{Name: "credit_card_id", Value: filter.CreditCardID})
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	q := s.client.Query(`
		SELECT` + billColumns + `
		FROM ` + s.table(billsTable) + `
		` + where + `
		ORDER BY due_date, bill_id
	`)
	q.Parameters = params

	rows, err := readAll[BillRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListBills: %w", err)
	}

	out := make([]*domain.Bill, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetBill implements store.BillRepository.
func (s *BigQueryStore) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	q := s.client.Query(`
		SELECT` + billColumns + `
		FROM ` + s.table(billsTable) + `
		WHERE bill_id = @bill_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bill_id", Value: id},
	}

	rows, err := readAll[BillRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetBill: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("bill %s: %w", id, domain.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

// InsertBill implements store.BillRepository.
func (s *BigQueryStore) InsertBill(ctx context.Context, b *domain.Bill) error {
	row := billRowFromDomain(b)

	q := s.client.Query(`
		INSERT INTO ` + s.table(billsTable) + ` (` + billColumns + `
		)
		VALUES (
			@bill_id, @description, @amount, @due_date,
			@status, @credit_card_id, @invoice_settlement_id,
			@created_ts, @updated_ts
		)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bill_id", Value: row.BillID},
		{Name: "description", Value: row.Description},
		{Name: "amount", Value: row.Amount},
		{Name: "due_date", Value: row.DueDate},
		{Name: "status", Value: row.Status},
		{Name: "credit_card_id", Value: row.CreditCardID},
		{Name: "invoice_settlement_id", Value: row.InvoiceSettlementID},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertBill: %w", err)
	}
	return nil
}

// UpdateBillStatus implements store.BillRepository. The expected statuses
// are part of the UPDATE's WHERE clause and the outcome is read from the DML
// affected-row count, so two concurrent callers cannot both succeed.
func (s *BigQueryStore) UpdateBillStatus(ctx context.Context, id string, to domain.BillStatus, from ...domain.BillStatus) error {
	query := `
		UPDATE ` + s.table(billsTable) + `
		SET status = @to_status, invoice_settlement_id = NULL, updated_ts = @updated_ts
		WHERE bill_id = @bill_id`
	params := []bigquery.QueryParameter{
		{Name: "to_status", Value: string(to)},
		{Name: "updated_ts", Value: s.now().UTC()},
		{Name: "bill_id", Value: id},
	}
	if len(from) > 0 {
		query += ` AND status IN UNNEST(@from_statuses)`
		params = append(params, bigquery.QueryParameter{Name: "from_statuses", Value: statusStrings(from)})
	}

	q := s.client.Query(query)
	q.Parameters = params

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateBillStatus: %w", err)
	}
	if n > 0 {
		return nil
	}

	current, err := s.GetBill(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("bill %s is %s: %w", id, current.Status, domain.ErrStatusConflict)
}

// MarkCreditCardBillsPaid implements store.BillRepository.
func (s *BigQueryStore) MarkCreditCardBillsPaid(ctx context.Context, cardID, settlementID string) (int64, error) {
	q := s.client.Query(`
		UPDATE ` + s.table(billsTable) + `
		SET status = @paid, invoice_settlement_id = @invoice_settlement_id, updated_ts = @updated_ts
		WHERE credit_card_id = @credit_card_id
		  AND status IN UNNEST(@open_statuses)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "paid", Value: string(domain.BillPaid)},
		{Name: "invoice_settlement_id", Value: nullString(settlementID)},
		{Name: "updated_ts", Value: s.now().UTC()},
		{Name: "credit_card_id", Value: cardID},
		{Name: "open_statuses", Value: statusStrings([]domain.BillStatus{domain.BillPending, domain.BillOverdue})},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("MarkCreditCardBillsPaid: %w", err)
	}
	return n, nil
}

func statusStrings(statuses []domain.BillStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
