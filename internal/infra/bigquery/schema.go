package bigquery

import (
	"context"
	"fmt"
)

// Schema returns the CREATE TABLE IF NOT EXISTS statements for the dataset.
// Column names match the bigquery tags of the row structs.
func Schema(projectID, datasetID string) []string {
	t := func(name string) string { return tableRef(projectID, datasetID, name) }
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + t(accountsTable) + ` (
			account_id    STRING NOT NULL,
			account_name  STRING NOT NULL,
			account_type  STRING NOT NULL,
			balance       NUMERIC NOT NULL,
			created_ts    TIMESTAMP NOT NULL,
			updated_ts    TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ` + t(transactionsTable) + ` (
			transaction_id    STRING NOT NULL,
			account_id        STRING,
			credit_card_id    STRING,
			bill_id           STRING,
			transaction_date  DATE NOT NULL,
			amount            NUMERIC NOT NULL,
			direction         STRING NOT NULL,
			status            STRING NOT NULL,
			kind              STRING NOT NULL,
			description       STRING NOT NULL,
			created_ts        TIMESTAMP NOT NULL,
			updated_ts        TIMESTAMP
		)
		CLUSTER BY account_id, credit_card_id, bill_id`,
		`CREATE TABLE IF NOT EXISTS ` + t(creditCardsTable) + ` (
			credit_card_id  STRING NOT NULL,
			card_name       STRING NOT NULL,
			card_limit      NUMERIC NOT NULL,
			used_amount     NUMERIC NOT NULL,
			due_day         INT64 NOT NULL,
			closing_day     INT64 NOT NULL,
			status          STRING NOT NULL,
			created_ts      TIMESTAMP NOT NULL,
			updated_ts      TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ` + t(billsTable) + ` (
			bill_id                STRING NOT NULL,
			description            STRING NOT NULL,
			amount                 NUMERIC NOT NULL,
			due_date               DATE NOT NULL,
			status                 STRING NOT NULL,
			credit_card_id         STRING,
			invoice_settlement_id  STRING,
			created_ts             TIMESTAMP NOT NULL,
			updated_ts             TIMESTAMP
		)`,
	}
}

// EnsureSchema creates any missing tables. Existing tables are left unchanged.
func (s *BigQueryStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema(s.projectID, s.datasetID) {
		if _, err := runDML(ctx, s.client.Query(stmt)); err != nil {
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	}
	return nil
}
