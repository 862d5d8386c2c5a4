package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/store/inmemory"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// recordingPublisher captures write-back jobs instead of running them.
type recordingPublisher struct {
	mu   sync.Mutex
	jobs []*jobs.WriteBackJob
	err  error
}

func (p *recordingPublisher) PublishWriteBack(ctx context.Context, job *jobs.WriteBackJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*jobs.WriteBackJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*jobs.WriteBackJob(nil), p.jobs...)
}

func newTestEngine(t *testing.T, pub jobs.Publisher) (*Engine, *inmemory.Store) {
	t.Helper()
	s := inmemory.NewStore()
	var seq int64
	e := NewEngine(s, Options{
		Publisher: pub,
		Now:       func() time.Time { return fixedNow },
		NewID:     func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1)) },
	})
	return e, s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedAccount(t *testing.T, s *inmemory.Store, id, balance string) {
	t.Helper()
	a := &domain.Account{ID: id, Name: "Account " + id, Type: domain.AccountChecking, Balance: dec(balance), CreatedAt: fixedNow}
	if err := s.InsertAccount(context.Background(), a); err != nil {
		t.Fatalf("InsertAccount(%s) error: %v", id, err)
	}
}

func seedCard(t *testing.T, s *inmemory.Store, id, used string) {
	t.Helper()
	c := &domain.CreditCard{
		ID: id, Name: "Card " + id, CardLimit: dec("5000"), UsedAmount: dec(used),
		DueDay: 10, ClosingDay: 3, Status: domain.CardActive, CreatedAt: fixedNow,
	}
	if err := s.InsertCreditCard(context.Background(), c); err != nil {
		t.Fatalf("InsertCreditCard(%s) error: %v", id, err)
	}
}

func seedBill(t *testing.T, s *inmemory.Store, id, amount string, status domain.BillStatus, cardID string) {
	t.Helper()
	b := &domain.Bill{
		ID: id, Description: "Bill " + id, Amount: dec(amount), Status: status,
		DueDate: fixedNow.AddDate(0, 0, 5), CreditCardID: cardID, CreatedAt: fixedNow,
	}
	if err := s.InsertBill(context.Background(), b); err != nil {
		t.Fatalf("InsertBill(%s) error: %v", id, err)
	}
}

func seedTxn(t *testing.T, s *inmemory.Store, tx domain.Transaction) {
	t.Helper()
	tx.ApplyDefaults(fixedNow)
	if err := s.InsertTransaction(context.Background(), &tx); err != nil {
		t.Fatalf("InsertTransaction(%s) error: %v", tx.ID, err)
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(inmemory.NewStore(), Options{})

	if !e.tolerance.Equal(DefaultTolerance) {
		t.Errorf("tolerance = %s, want %s", e.tolerance, DefaultTolerance)
	}
	if e.cache == nil || e.now == nil || e.newID == nil {
		t.Error("NewEngine left a default unset")
	}
	if e.newID() == e.newID() {
		t.Error("newID returned the same id twice")
	}
}

func TestEngine_Drifted(t *testing.T) {
	e := NewEngine(inmemory.NewStore(), Options{})

	tests := []struct {
		computed, stored string
		want             bool
	}{
		{"100", "100", false},
		{"100.01", "100", false},
		{"100.02", "100", true},
		{"99.98", "100", true},
		{"0", "-0.005", false},
	}
	for _, tt := range tests {
		t.Run(tt.computed+"_vs_"+tt.stored, func(t *testing.T) {
			if got := e.drifted(dec(tt.computed), dec(tt.stored)); got != tt.want {
				t.Errorf("drifted(%s, %s) = %v, want %v", tt.computed, tt.stored, got, tt.want)
			}
		})
	}
}

func TestPartialFailureError(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := &PartialFailureError{
		Operation: OpPayBill,
		Completed: []string{StepMarkPaid},
		Failed:    StepCreateSettlement,
		Err:       cause,
	}

	want := "pay_bill: step create_settlement failed after [mark_bill_paid]: connection reset"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() did not return the cause")
	}
}
