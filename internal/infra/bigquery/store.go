package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/store"
)

// Table names inside the dataset.
const (
	accountsTable     = "accounts"
	transactionsTable = "transactions"
	creditCardsTable  = "credit_cards"
	billsTable        = "bills"
)

// BigQueryStore is the hosted implementation of store.Store. It holds one
// shared BigQuery client for every operation.
type BigQueryStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

var _ store.Store = (*BigQueryStore)(nil)

// NewBigQueryStore creates a store with its own client for projectID.
func NewBigQueryStore(ctx context.Context, projectID, datasetID string) (*BigQueryStore, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryStore: creating client: %w", err)
	}
	return NewBigQueryStoreWithClient(client, projectID, datasetID), nil
}

// NewBigQueryStoreWithClient wraps an existing client.
func NewBigQueryStoreWithClient(client *bigquery.Client, projectID, datasetID string) *BigQueryStore {
	return &BigQueryStore{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		now:       time.Now,
	}
}

// Close closes the BigQuery client connection.
func (s *BigQueryStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// table returns the backtick-quoted, fully qualified table name.
func (s *BigQueryStore) table(name string) string {
	return tableRef(s.projectID, s.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return "`" + projectID + "." + datasetID + "." + name + "`"
}
