package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
)

func TestPayBill_ThenRevert_RestoresBalance(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)

	seedAccount(t, s, "a1", "1000")
	seedTxn(t, s, domain.Transaction{ID: "t1", Amount: dec("1000"), Type: domain.TransactionIncome, AccountID: "a1"})
	seedBill(t, s, "b1", "300", domain.BillPending, "")

	// Warm the cache so the payment has something to invalidate.
	if a, err := e.GetAccount(ctx, "a1"); err != nil || !a.Balance.Equal(dec("1000")) {
		t.Fatalf("GetAccount() = %v, %v, want balance 1000", a, err)
	}

	settlement, err := e.PayBill(ctx, "b1", "a1", fixedNow)
	if err != nil {
		t.Fatalf("PayBill() error: %v", err)
	}
	if !settlement.IsSettlement() || settlement.BillID != "b1" || settlement.AccountID != "a1" {
		t.Errorf("settlement = %+v", settlement)
	}
	if settlement.Type != domain.TransactionExpense || settlement.Status != domain.TransactionCompleted {
		t.Errorf("settlement type/status = %s/%s", settlement.Type, settlement.Status)
	}

	a, err := e.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if !a.Balance.Equal(dec("700")) {
		t.Errorf("balance after pay = %s, want 700", a.Balance)
	}
	bill, _ := s.GetBill(ctx, "b1")
	if bill.Status != domain.BillPaid {
		t.Errorf("bill status after pay = %s, want paid", bill.Status)
	}

	res, err := e.RevertBill(ctx, "b1")
	if err != nil {
		t.Fatalf("RevertBill() error: %v", err)
	}
	if res.DeletedTransactions != 1 || res.Bill.Status != domain.BillPending {
		t.Errorf("RevertBill() = %+v", res)
	}

	a, err = e.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if !a.Balance.Equal(dec("1000")) {
		t.Errorf("balance after revert = %s, want 1000", a.Balance)
	}
	bill, _ = s.GetBill(ctx, "b1")
	if bill.Status != domain.BillPending {
		t.Errorf("bill status after revert = %s, want pending", bill.Status)
	}
	linked, _ := s.ListTransactionsByBill(ctx, "b1")
	if len(linked) != 0 {
		t.Errorf("linked transactions after revert = %d, want 0", len(linked))
	}
}

func TestPayBill_AlreadyPaid(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "10", domain.BillPaid, "")

	_, err := e.PayBill(context.Background(), "b1", "a1", fixedNow)
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Errorf("PayBill() error = %v, want ErrStatusConflict", err)
	}
}

func TestPayBill_Overdue(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "10", domain.BillOverdue, "")

	if _, err := e.PayBill(context.Background(), "b1", "a1", fixedNow); err != nil {
		t.Fatalf("PayBill() error: %v", err)
	}
	bill, _ := s.GetBill(context.Background(), "b1")
	if bill.Status != domain.BillPaid {
		t.Errorf("status = %s, want paid", bill.Status)
	}
}

func TestPayBill_Validation(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "10", domain.BillPending, "")

	tests := []struct {
		name      string
		billID    string
		accountID string
		wantErr   error
	}{
		{"missing account id", "b1", "", domain.ErrInvalid},
		{"unknown bill", "nope", "a1", domain.ErrNotFound},
		{"unknown account", "b1", "nope", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PayBill(context.Background(), tt.billID, tt.accountID, fixedNow)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PayBill() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	bill, _ := s.GetBill(context.Background(), "b1")
	if bill.Status != domain.BillPending {
		t.Errorf("bill status = %s, want pending after rejected payments", bill.Status)
	}
}

func TestPayBill_CardBillCarriesCard(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedCard(t, s, "c1", "0")
	seedBill(t, s, "b1", "40", domain.BillPending, "c1")

	settlement, err := e.PayBill(ctx, "b1", "a1", fixedNow)
	if err != nil {
		t.Fatalf("PayBill() error: %v", err)
	}
	if settlement.CreditCardID != "c1" {
		t.Errorf("settlement card = %q, want c1", settlement.CreditCardID)
	}
}

func TestPayBill_ConcurrentSingleSettlement(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "25", domain.BillPending, "")

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.PayBill(ctx, "b1", "a1", fixedNow)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrStatusConflict):
				conflicts++
			default:
				t.Errorf("PayBill() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != attempts-1 {
		t.Errorf("succeeded = %d, conflicts = %d", succeeded, conflicts)
	}
	linked, _ := s.ListTransactionsByBill(ctx, "b1")
	if len(linked) != 1 {
		t.Errorf("settlements = %d, want 1", len(linked))
	}
}

func TestPayBill_PartialFailure(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "25", domain.BillPending, "")

	s.SetFailHook(func(op, id string) error {
		if op == "InsertTransaction" {
			return errors.New("write timeout")
		}
		return nil
	})

	_, err := e.PayBill(ctx, "b1", "a1", fixedNow)
	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("PayBill() error = %v, want *PartialFailureError", err)
	}
	if pf.Operation != OpPayBill || pf.Failed != StepCreateSettlement {
		t.Errorf("partial failure = %+v", pf)
	}
	if len(pf.Completed) != 1 || pf.Completed[0] != StepMarkPaid {
		t.Errorf("completed = %v, want [%s]", pf.Completed, StepMarkPaid)
	}

	bill, _ := s.GetBill(ctx, "b1")
	if bill.Status != domain.BillPaid {
		t.Errorf("bill status = %s, want paid (no rollback)", bill.Status)
	}

	// The audit sees the half-applied payment and repair reopens the bill.
	s.SetFailHook(nil)
	report, err := e.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if len(report.PaidWithoutSettlement) != 1 || report.PaidWithoutSettlement[0] != "b1" {
		t.Errorf("PaidWithoutSettlement = %v, want [b1]", report.PaidWithoutSettlement)
	}
}

func TestPayBill_ReusesExistingSettlement(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "25", domain.BillPending, "")
	seedTxn(t, s, domain.Transaction{
		ID: "old", Amount: dec("25"), Type: domain.TransactionExpense,
		Kind: domain.KindSettlement, AccountID: "a1", BillID: "b1",
	})

	got, err := e.PayBill(ctx, "b1", "a1", fixedNow)
	if err != nil {
		t.Fatalf("PayBill() error: %v", err)
	}
	if got.ID != "old" {
		t.Errorf("settlement id = %s, want old", got.ID)
	}
	linked, _ := s.ListTransactionsByBill(ctx, "b1")
	if len(linked) != 1 {
		t.Errorf("settlements = %d, want 1", len(linked))
	}
}

func TestRevertBill_PendingIsNoOp(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedBill(t, s, "b1", "10", domain.BillPending, "")

	res, err := e.RevertBill(context.Background(), "b1")
	if err != nil {
		t.Fatalf("RevertBill() error: %v", err)
	}
	if res.DeletedTransactions != 0 || res.Bill.Status != domain.BillPending {
		t.Errorf("RevertBill() = %+v", res)
	}
}

func TestRevertBill_NotFound(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.RevertBill(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("RevertBill() error = %v, want ErrNotFound", err)
	}
}

func TestRevertBill_PartialFailure(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "25", domain.BillPending, "")

	if _, err := e.PayBill(ctx, "b1", "a1", fixedNow); err != nil {
		t.Fatalf("PayBill() error: %v", err)
	}

	s.SetFailHook(func(op, id string) error {
		if op == "UpdateBillStatus" {
			return errors.New("write timeout")
		}
		return nil
	})

	_, err := e.RevertBill(ctx, "b1")
	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("RevertBill() error = %v, want *PartialFailureError", err)
	}
	if pf.Operation != OpRevertBill || pf.Failed != StepResetStatus {
		t.Errorf("partial failure = %+v", pf)
	}

	s.SetFailHook(nil)
	linked, _ := s.ListTransactionsByBill(ctx, "b1")
	if len(linked) != 0 {
		t.Errorf("settlements = %d, want 0 after delete step", len(linked))
	}
	bill, _ := s.GetBill(ctx, "b1")
	if bill.Status != domain.BillPaid {
		t.Errorf("bill status = %s, want paid", bill.Status)
	}
}

func TestRefreshOverdue(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)

	past := &domain.Bill{ID: "late", Amount: dec("5"), Status: domain.BillPending, DueDate: fixedNow.AddDate(0, 0, -2)}
	today := &domain.Bill{ID: "today", Amount: dec("5"), Status: domain.BillPending, DueDate: fixedNow}
	paid := &domain.Bill{ID: "paid", Amount: dec("5"), Status: domain.BillPaid, DueDate: fixedNow.AddDate(0, 0, -9)}
	for _, b := range []*domain.Bill{past, today, paid} {
		if err := s.InsertBill(ctx, b); err != nil {
			t.Fatalf("InsertBill() error: %v", err)
		}
	}

	n, err := e.RefreshOverdue(ctx, fixedNow)
	if err != nil {
		t.Fatalf("RefreshOverdue() error: %v", err)
	}
	if n != 1 {
		t.Errorf("flipped = %d, want 1", n)
	}

	overdue, _ := s.ListBills(ctx, store.BillFilter{Status: domain.BillOverdue})
	if len(overdue) != 1 || overdue[0].ID != "late" {
		t.Errorf("overdue bills = %v", overdue)
	}
}

func TestGetBill_Invalidated(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedBill(t, s, "b1", "10", domain.BillPending, "")

	if b, err := e.GetBill(ctx, "b1"); err != nil || b.Status != domain.BillPending {
		t.Fatalf("GetBill() = %v, %v", b, err)
	}
	if _, ok := e.Cache().Lookup(cache.Key{Kind: cache.KindBill, ID: "b1"}); !ok {
		t.Fatal("bill was not cached")
	}

	if _, err := e.PayBill(ctx, "b1", "a1", fixedNow); err != nil {
		t.Fatalf("PayBill() error: %v", err)
	}
	b, err := e.GetBill(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBill() error: %v", err)
	}
	if b.Status != domain.BillPaid {
		t.Errorf("cached status = %s, want paid", b.Status)
	}
}

func TestCreateBill(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedCard(t, s, "c1", "0")

	b, err := e.CreateBill(ctx, &domain.Bill{Description: "Rent", Amount: dec("800"), DueDate: fixedNow})
	if err != nil {
		t.Fatalf("CreateBill() error: %v", err)
	}
	if b.ID == "" || b.Status != domain.BillPending {
		t.Errorf("CreateBill() = %+v", b)
	}

	if _, err := e.CreateBill(ctx, &domain.Bill{Amount: dec("-1")}); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("negative amount error = %v, want ErrInvalid", err)
	}
	if _, err := e.CreateBill(ctx, &domain.Bill{Amount: dec("1"), CreditCardID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown card error = %v, want ErrNotFound", err)
	}
}
