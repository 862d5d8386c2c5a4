package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/dvloznov/finance-ledger/internal/store/inmemory"
)

// seedInvoice sets up account a1 with 1000, card c1 with 150 of purchases and
// two open bills on the card.
func seedInvoice(t *testing.T, s *inmemory.Store) {
	t.Helper()
	seedAccount(t, s, "a1", "1000")
	seedTxn(t, s, domain.Transaction{ID: "salary", Amount: dec("1000"), Type: domain.TransactionIncome, AccountID: "a1"})
	seedCard(t, s, "c1", "150")
	seedTxn(t, s, domain.Transaction{ID: "p1", Amount: dec("100"), Type: domain.TransactionExpense, CreditCardID: "c1"})
	seedTxn(t, s, domain.Transaction{ID: "p2", Amount: dec("50"), Type: domain.TransactionExpense, Status: domain.TransactionPending, CreditCardID: "c1"})
	seedBill(t, s, "cb1", "100", domain.BillPending, "c1")
	seedBill(t, s, "cb2", "50", domain.BillOverdue, "c1")
}

func TestPayCardInvoice(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	e, s := newTestEngine(t, pub)
	seedInvoice(t, s)

	res, err := e.PayCardInvoice(ctx, "c1", "a1", fixedNow)
	if err != nil {
		t.Fatalf("PayCardInvoice() error: %v", err)
	}
	if !res.Transaction.Amount.Equal(dec("150")) || !res.Transaction.IsSettlement() {
		t.Errorf("settlement = %+v", res.Transaction)
	}
	if res.Transaction.CreditCardID != "c1" || res.Transaction.AccountID != "a1" {
		t.Errorf("settlement links = card %q account %q", res.Transaction.CreditCardID, res.Transaction.AccountID)
	}
	if res.BillsPaid != 2 {
		t.Errorf("bills paid = %d, want 2", res.BillsPaid)
	}

	stored, _ := s.GetCreditCard(ctx, "c1")
	if !stored.UsedAmount.IsZero() {
		t.Errorf("stored used amount = %s, want 0", stored.UsedAmount)
	}

	// Recomputation agrees with the direct write and schedules nothing.
	card, err := e.GetCreditCard(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCreditCard() error: %v", err)
	}
	if !card.UsedAmount.IsZero() {
		t.Errorf("recomputed used amount = %s, want 0", card.UsedAmount)
	}
	for _, job := range pub.published() {
		if job.EntityID == "c1" {
			t.Errorf("unexpected card write-back: %+v", job)
		}
	}

	account, err := e.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if !account.Balance.Equal(dec("850")) {
		t.Errorf("balance = %s, want 850", account.Balance)
	}

	open, _ := s.ListBills(ctx, store.BillFilter{CreditCardID: "c1", Status: domain.BillPending})
	if len(open) != 0 {
		t.Errorf("pending card bills = %d, want 0", len(open))
	}

	handler := e.WriteBackHandler()
	for _, job := range pub.published() {
		if err := handler(ctx, job); err != nil {
			t.Fatalf("handler() error: %v", err)
		}
	}

	// Card bills settled by the invoice are not audit findings.
	report, err := e.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if !report.Clean() {
		t.Errorf("audit after invoice payment not clean: %+v", report)
	}

	if _, err := e.PayCardInvoice(ctx, "c1", "a1", fixedNow); !errors.Is(err, domain.ErrNothingToPay) {
		t.Errorf("second PayCardInvoice() error = %v, want ErrNothingToPay", err)
	}
}

func TestPayCardInvoice_NothingToPay(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedCard(t, s, "c1", "0")

	_, err := e.PayCardInvoice(context.Background(), "c1", "a1", fixedNow)
	if !errors.Is(err, domain.ErrNothingToPay) {
		t.Errorf("PayCardInvoice() error = %v, want ErrNothingToPay", err)
	}
	txs, _ := s.ListTransactions(context.Background(), store.TransactionFilter{})
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
}

func TestPayCardInvoice_UnknownCard(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")

	_, err := e.PayCardInvoice(context.Background(), "nope", "a1", fixedNow)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("PayCardInvoice() error = %v, want ErrNotFound", err)
	}
}

func TestPayCardInvoice_PartialFailure(t *testing.T) {
	tests := []struct {
		name          string
		failOp        string
		wantFailed    string
		wantCompleted []string
	}{
		{
			name:          "zeroing used amount fails",
			failOp:        "UpdateCreditCardUsedAmount",
			wantFailed:    StepZeroUsedAmount,
			wantCompleted: []string{StepCreateSettlement},
		},
		{
			name:          "marking bills fails",
			failOp:        "MarkCreditCardBillsPaid",
			wantFailed:    StepMarkCardBills,
			wantCompleted: []string{StepCreateSettlement, StepZeroUsedAmount},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e, s := newTestEngine(t, nil)
			seedInvoice(t, s)

			s.SetFailHook(func(op, id string) error {
				if op == tt.failOp {
					return errors.New("unavailable")
				}
				return nil
			})

			_, err := e.PayCardInvoice(ctx, "c1", "a1", fixedNow)
			var pf *PartialFailureError
			if !errors.As(err, &pf) {
				t.Fatalf("PayCardInvoice() error = %v, want *PartialFailureError", err)
			}
			if pf.Operation != OpPayCardInvoice || pf.Failed != tt.wantFailed {
				t.Errorf("partial failure = %+v", pf)
			}
			if len(pf.Completed) != len(tt.wantCompleted) {
				t.Fatalf("completed = %v, want %v", pf.Completed, tt.wantCompleted)
			}
			for i := range tt.wantCompleted {
				if pf.Completed[i] != tt.wantCompleted[i] {
					t.Errorf("completed[%d] = %s, want %s", i, pf.Completed[i], tt.wantCompleted[i])
				}
			}

			// The settlement alone is enough for recomputation to reach zero.
			s.SetFailHook(nil)
			card, err := e.GetCreditCard(ctx, "c1")
			if err != nil {
				t.Fatalf("GetCreditCard() error: %v", err)
			}
			if !card.UsedAmount.IsZero() {
				t.Errorf("recomputed used amount = %s, want 0", card.UsedAmount)
			}
		})
	}
}

func TestPayCardInvoice_SettlementFailureAppliesNothing(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedInvoice(t, s)

	s.SetFailHook(func(op, id string) error {
		if op == "InsertTransaction" {
			return errors.New("unavailable")
		}
		return nil
	})

	_, err := e.PayCardInvoice(ctx, "c1", "a1", fixedNow)
	if err == nil {
		t.Fatal("PayCardInvoice() error = nil")
	}
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		t.Errorf("got partial failure %+v, want a plain error", pf)
	}

	s.SetFailHook(nil)
	open, _ := s.ListBills(ctx, store.BillFilter{CreditCardID: "c1"})
	for _, b := range open {
		if b.Status == domain.BillPaid {
			t.Errorf("bill %s marked paid without a settlement", b.ID)
		}
	}
}
