package reconcile

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/store"
)

func TestCreateAccount_OpeningBalance(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)

	tests := []struct {
		name    string
		opening string
		wantTxs int
	}{
		{"zero opening", "0", 0},
		{"positive opening", "250", 1},
		{"negative opening", "-40", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := e.CreateAccount(ctx, &domain.Account{Name: tt.name, Type: domain.AccountSavings, Balance: dec(tt.opening)})
			if err != nil {
				t.Fatalf("CreateAccount() error: %v", err)
			}
			txs, _ := s.ListTransactions(ctx, store.TransactionFilter{AccountID: a.ID})
			if len(txs) != tt.wantTxs {
				t.Errorf("opening transactions = %d, want %d", len(txs), tt.wantTxs)
			}

			got, err := e.GetAccount(ctx, a.ID)
			if err != nil {
				t.Fatalf("GetAccount() error: %v", err)
			}
			if !got.Balance.Equal(dec(tt.opening)) {
				t.Errorf("balance = %s, want %s", got.Balance, tt.opening)
			}
		})
	}

	if _, err := e.CreateAccount(ctx, &domain.Account{Type: domain.AccountChecking}); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("nameless account error = %v, want ErrInvalid", err)
	}
}

func TestCreateAccount_BalanceWriteFails(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf))
	e, s := newTestEngine(t, nil)
	s.SetFailHook(func(op, id string) error {
		if op == "UpdateAccountBalance" {
			return errors.New("write timeout")
		}
		return nil
	})

	a, err := e.CreateAccount(ctx, &domain.Account{Name: "Savings", Type: domain.AccountSavings, Balance: dec("250")})
	if err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	if !a.Balance.Equal(dec("250")) {
		t.Errorf("returned balance = %s, want 250", a.Balance)
	}
	if !strings.Contains(buf.String(), "Opening balance not cached") {
		t.Errorf("log = %q, want opening balance warning", buf.String())
	}

	s.SetFailHook(nil)
	got, err := e.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if !got.Balance.Equal(dec("250")) {
		t.Errorf("recomputed balance = %s, want 250", got.Balance)
	}
}

func TestCreateCreditCard(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	c, err := e.CreateCreditCard(context.Background(), &domain.CreditCard{
		Name: "Visa", CardLimit: dec("2000"), UsedAmount: dec("99"), DueDay: 15, ClosingDay: 8,
	})
	if err != nil {
		t.Fatalf("CreateCreditCard() error: %v", err)
	}
	if c.Status != domain.CardActive || !c.UsedAmount.IsZero() || c.ID == "" {
		t.Errorf("CreateCreditCard() = %+v", c)
	}

	_, err = e.CreateCreditCard(context.Background(), &domain.CreditCard{Name: "Bad", DueDay: 40, ClosingDay: 1})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("bad due day error = %v, want ErrInvalid", err)
	}
}

func TestCreateTransaction_InvalidatesAccount(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")

	if _, err := e.GetAccount(ctx, "a1"); err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}

	tx, err := e.CreateTransaction(ctx, &domain.Transaction{Description: "Salary", Amount: dec("1200"), Type: domain.TransactionIncome, AccountID: "a1"})
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}
	if tx.Status != domain.TransactionCompleted || tx.Kind != domain.KindRegular || !tx.Date.Equal(fixedNow) {
		t.Errorf("defaults not applied: %+v", tx)
	}

	a, err := e.GetAccount(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if !a.Balance.Equal(dec("1200")) {
		t.Errorf("balance = %s, want 1200", a.Balance)
	}
}

func TestCreateTransaction_Rejects(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")

	tests := []struct {
		name    string
		tx      domain.Transaction
		wantErr error
	}{
		{"zero amount", domain.Transaction{Type: domain.TransactionIncome, AccountID: "a1"}, domain.ErrInvalid},
		{"no owner", domain.Transaction{Amount: dec("1"), Type: domain.TransactionIncome}, domain.ErrInvalid},
		{"unknown type", domain.Transaction{Amount: dec("1"), Type: "gift", AccountID: "a1"}, domain.ErrInvalid},
		{"unknown account", domain.Transaction{Amount: dec("1"), Type: domain.TransactionIncome, AccountID: "nope"}, domain.ErrNotFound},
		{"unknown card", domain.Transaction{Amount: dec("1"), Type: domain.TransactionExpense, CreditCardID: "nope"}, domain.ErrNotFound},
		{"unknown bill", domain.Transaction{Amount: dec("1"), Type: domain.TransactionExpense, AccountID: "a1", BillID: "nope"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := tt.tx
			if _, err := e.CreateTransaction(context.Background(), &tx); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateTransaction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateTransaction_MovesBetweenAccounts(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedAccount(t, s, "a2", "0")

	tx, err := e.CreateTransaction(ctx, &domain.Transaction{Amount: dec("30"), Type: domain.TransactionIncome, AccountID: "a1"})
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}
	for _, id := range []string{"a1", "a2"} {
		if _, err := e.GetAccount(ctx, id); err != nil {
			t.Fatalf("GetAccount(%s) error: %v", id, err)
		}
	}

	moved := *tx
	moved.AccountID = "a2"
	if _, err := e.UpdateTransaction(ctx, &moved); err != nil {
		t.Fatalf("UpdateTransaction() error: %v", err)
	}

	a1, _ := e.GetAccount(ctx, "a1")
	a2, _ := e.GetAccount(ctx, "a2")
	if !a1.Balance.IsZero() || !a2.Balance.Equal(dec("30")) {
		t.Errorf("balances = %s, %s, want 0, 30", a1.Balance, a2.Balance)
	}
}

func TestUpdateTransaction_OrphanStaysEditable(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedTxn(t, s, domain.Transaction{ID: "t1", Amount: dec("5"), Type: domain.TransactionExpense, AccountID: "deleted"})

	edited := domain.Transaction{ID: "t1", Description: "fixed", Amount: dec("6"), Type: domain.TransactionExpense, AccountID: "deleted"}
	got, err := e.UpdateTransaction(ctx, &edited)
	if err != nil {
		t.Fatalf("UpdateTransaction() error: %v", err)
	}
	if got.Description != "fixed" || !got.Amount.Equal(dec("6")) {
		t.Errorf("UpdateTransaction() = %+v", got)
	}
}

func TestUpdateTransaction_NotFound(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.UpdateTransaction(context.Background(), &domain.Transaction{ID: "missing", Amount: dec("1"), Type: domain.TransactionIncome, AccountID: "a"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateTransaction() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, nil)
	seedAccount(t, s, "a1", "0")
	seedCard(t, s, "c1", "0")
	seedTxn(t, s, domain.Transaction{ID: "t1", Amount: dec("9"), Type: domain.TransactionExpense, AccountID: "a1", CreditCardID: "c1"})

	if _, err := e.GetCreditCard(ctx, "c1"); err != nil {
		t.Fatalf("GetCreditCard() error: %v", err)
	}
	if err := e.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}
	if _, ok := e.Cache().Lookup(cache.Key{Kind: cache.KindCreditCard, ID: "c1"}); ok {
		t.Error("card still cached after its transaction was deleted")
	}

	c, _ := e.GetCreditCard(ctx, "c1")
	if !c.UsedAmount.IsZero() {
		t.Errorf("used amount = %s, want 0", c.UsedAmount)
	}

	if err := e.DeleteTransaction(ctx, "t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second DeleteTransaction() error = %v, want ErrNotFound", err)
	}
}
