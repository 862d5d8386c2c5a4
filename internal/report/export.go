// Package report publishes audit reports as JSON objects in Cloud Storage.
package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
)

const contentType = "application/json"

// Exporter writes audit reports to a single bucket.
type Exporter struct {
	storage StorageService
	bucket  string
}

// NewExporter returns an Exporter for bucket.
func NewExporter(storage StorageService, bucket string) *Exporter {
	return &Exporter{storage: storage, bucket: bucket}
}

// ObjectName is where a report generated at r.GeneratedAt is stored, grouped by day.
func ObjectName(r *reconcile.AuditReport) string {
	ts := r.GeneratedAt.UTC()
	return fmt.Sprintf("audits/%s/audit-%s.json", ts.Format("2006/01/02"), ts.Format("20060102T150405Z"))
}

// Export uploads r and returns its gs:// URI.
func (e *Exporter) Export(ctx context.Context, r *reconcile.AuditReport) (string, error) {
	if e.bucket == "" {
		return "", fmt.Errorf("Export: no bucket configured")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Export: marshal report: %w", err)
	}

	object := ObjectName(r)
	if err := e.storage.Upload(ctx, e.bucket, object, contentType, data); err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	uri := URI(e.bucket, object)
	log := logger.FromContext(ctx)
	log.Info().
		Str("uri", uri).
		Bool("clean", r.Clean()).
		Int("bytes", len(data)).
		Msg("audit report exported")
	return uri, nil
}

// Fetch downloads and decodes a report previously written by Export.
func (e *Exporter) Fetch(ctx context.Context, uri string) (*reconcile.AuditReport, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	data, err := e.storage.Download(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	var r reconcile.AuditReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("Fetch: decode %s: %w", uri, err)
	}
	return &r, nil
}
