package reconcile

import (
	"context"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_DuplicatePaymentRejected(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "10", domain.BillPaid, "")

	before := testutil.ToFloat64(observability.DuplicatePaymentsRejected)
	if _, err := e.PayBill(context.Background(), "b1", "a1", fixedNow); err == nil {
		t.Fatal("PayBill() expected error for paid bill")
	}
	if got := testutil.ToFloat64(observability.DuplicatePaymentsRejected) - before; got != 1 {
		t.Errorf("duplicate payments delta = %v, want 1", got)
	}
}

func TestMetrics_DriftCorrection(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "50")

	counter := observability.DriftCorrections.WithLabelValues("account")
	before := testutil.ToFloat64(counter)
	if _, err := e.GetAccount(context.Background(), "a1"); err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("drift corrections delta = %v, want 1", got)
	}
}

func TestMetrics_AuditFindings(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "10", domain.BillPaid, "")

	if _, err := e.Audit(context.Background()); err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	gauge := observability.AuditFindings.WithLabelValues("paid_without_settlement")
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("paid_without_settlement = %v, want 1", got)
	}
}
