package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const creditCardColumns = `
	credit_card_id,
	card_name,
	card_limit,
	used_amount,
	due_day,
	closing_day,
	status,
	created_ts,
	updated_ts`

// ListCreditCards implements store.CreditCardRepository.
func (s *BigQueryStore) ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error) {
	q := s.client.Query(`
		SELECT` + creditCardColumns + `
		FROM ` + s.table(creditCardsTable) + `
		ORDER BY created_ts, credit_card_id
	`)

	rows, err := readAll[CreditCardRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListCreditCards: %w", err)
	}

	out := make([]*domain.CreditCard, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetCreditCard implements store.CreditCardRepository.
func (s *BigQueryStore) GetCreditCard(ctx context.Context, id string) (*domain.CreditCard, error) {
	q := s.client.Query(`
		SELECT` + creditCardColumns + `
		FROM ` + s.table(creditCardsTable) + `
		WHERE credit_card_id = @credit_card_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "credit_card_id", Value: id},
	}

	rows, err := readAll[CreditCardRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetCreditCard: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("credit card %s: %w", id, domain.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

// InsertCreditCard implements store.CreditCardRepository.
func (s *BigQueryStore) InsertCreditCard(ctx context.Context, c *domain.CreditCard) error {
	row := creditCardRowFromDomain(c)

	q := s.client.Query(`
		INSERT INTO ` + s.table(creditCardsTable) + ` (` + creditCardColumns + `
		)
		VALUES (
			@credit_card_id, @card_name, @card_limit, @used_amount,
			@due_day, @closing_day, @status, @created_ts, @updated_ts
		)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "credit_card_id", Value: row.CreditCardID},
		{Name: "card_name", Value: row.CardName},
		{Name: "card_limit", Value: row.CardLimit},
		{Name: "used_amount", Value: row.UsedAmount},
		{Name: "due_day", Value: row.DueDay},
		{Name: "closing_day", Value: row.ClosingDay},
		{Name: "status", Value: row.Status},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertCreditCard: %w", err)
	}
	return nil
}

// UpdateCreditCardUsedAmount implements store.CreditCardRepository.
func (s *BigQueryStore) UpdateCreditCardUsedAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	q := s.client.Query(`
		UPDATE ` + s.table(creditCardsTable) + `
		SET used_amount = @used_amount, updated_ts = @updated_ts
		WHERE credit_card_id = @credit_card_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "used_amount", Value: ratFromDecimal(amount)},
		{Name: "updated_ts", Value: s.now().UTC()},
		{Name: "credit_card_id", Value: id},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateCreditCardUsedAmount: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("credit card %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
