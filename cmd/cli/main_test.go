package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/shopspring/decimal"
)

var seedTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// writeConfig points the CLI at a fresh sqlite file seeded with one account
// whose stored balance is stale, one pending bill and one card purchase.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(db.InsertAccount(ctx, &domain.Account{ID: "a1", Name: "Main", Type: domain.AccountChecking, CreatedAt: seedTime, UpdatedAt: seedTime}))
	must(db.InsertTransaction(ctx, &domain.Transaction{
		ID: "t1", Description: "Salary", Amount: decimal.NewFromInt(1000),
		Type: domain.TransactionIncome, Status: domain.TransactionCompleted, Kind: domain.KindRegular,
		AccountID: "a1", Date: seedTime, CreatedAt: seedTime, UpdatedAt: seedTime,
	}))
	must(db.InsertCreditCard(ctx, &domain.CreditCard{
		ID: "c1", Name: "Visa", CardLimit: decimal.NewFromInt(2000), DueDay: 10, ClosingDay: 3,
		Status: domain.CardActive, CreatedAt: seedTime, UpdatedAt: seedTime,
	}))
	must(db.InsertTransaction(ctx, &domain.Transaction{
		ID: "t2", Description: "Books", Amount: decimal.NewFromInt(40),
		Type: domain.TransactionExpense, Status: domain.TransactionCompleted, Kind: domain.KindRegular,
		CreditCardID: "c1", Date: seedTime, CreatedAt: seedTime, UpdatedAt: seedTime,
	}))
	must(db.InsertBill(ctx, &domain.Bill{
		ID: "b1", Description: "Rent", Amount: decimal.NewFromInt(300), Status: domain.BillPending,
		DueDate: seedTime.AddDate(0, 0, 4), CreatedAt: seedTime, UpdatedAt: seedTime,
	}))
	must(db.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("store:\n  driver: sqlite\n  sqlite_path: %s\nlog:\n  level: error\n  format: json\n", dbPath)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, dbPath
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	defer a.close()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_AccountsWritesBackDrift(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := run(t, cfgPath, "accounts")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if !strings.Contains(out, "1000.00") {
		t.Errorf("accounts output missing reconciled balance:\n%s", out)
	}

	db, err := sqlite.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer db.Close()
	a, err := db.GetAccount(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !a.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("stored balance = %s, want 1000 after write-back", a.Balance)
	}
}

func TestCLI_PayAndRevertBill(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, cfgPath, "pay-bill", "b1", "--account", "a1", "--date", "2025-03-02")
	if err != nil {
		t.Fatalf("pay-bill: %v", err)
	}
	if !strings.Contains(out, "Paid bill b1") {
		t.Errorf("pay-bill output = %q", out)
	}

	if _, err := run(t, cfgPath, "pay-bill", "b1", "--account", "a1"); err == nil {
		t.Error("second pay-bill should fail")
	}

	out, err = run(t, cfgPath, "accounts")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if !strings.Contains(out, "700.00") {
		t.Errorf("balance after payment not 700:\n%s", out)
	}

	out, err = run(t, cfgPath, "revert-bill", "b1")
	if err != nil {
		t.Fatalf("revert-bill: %v", err)
	}
	if !strings.Contains(out, "status pending, 1 transaction(s) deleted") {
		t.Errorf("revert-bill output = %q", out)
	}
}

func TestCLI_PayInvoice(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, cfgPath, "pay-invoice", "c1", "--account", "a1", "--date", "2025-03-05")
	if err != nil {
		t.Fatalf("pay-invoice: %v", err)
	}
	if !strings.Contains(out, "40.00") {
		t.Errorf("pay-invoice output = %q", out)
	}

	out, err = run(t, cfgPath, "cards")
	if err != nil {
		t.Fatalf("cards: %v", err)
	}
	if !strings.Contains(out, "Used:      0.00 / 2000.00") {
		t.Errorf("card usage not zeroed:\n%s", out)
	}
}

func TestCLI_AuditRepairMarkOverdue(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, cfgPath, "audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "Account balance drift (1)") || !strings.Contains(out, "Card usage drift (1)") {
		t.Errorf("audit output missing drift:\n%s", out)
	}

	out, err = run(t, cfgPath, "repair")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !strings.Contains(out, "Balances fixed:      1") {
		t.Errorf("repair output = %q", out)
	}

	out, err = run(t, cfgPath, "audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "No inconsistencies found.") {
		t.Errorf("audit after repair:\n%s", out)
	}

	out, err = run(t, cfgPath, "mark-overdue", "--as-of", "2025-03-20")
	if err != nil {
		t.Fatalf("mark-overdue: %v", err)
	}
	if !strings.Contains(out, "Marked 1 bill(s) overdue") {
		t.Errorf("mark-overdue output = %q", out)
	}

	out, err = run(t, cfgPath, "bills", "--status", "overdue")
	if err != nil {
		t.Fatalf("bills: %v", err)
	}
	if !strings.Contains(out, "Bills (1)") {
		t.Errorf("bills output:\n%s", out)
	}
}

func TestCLI_BadInput(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing account flag", args: []string{"pay-bill", "b1"}},
		{name: "bad date", args: []string{"pay-bill", "b1", "--account", "a1", "--date", "03/02/2025"}},
		{name: "unknown bill", args: []string{"revert-bill", "nope"}},
		{name: "missing arg", args: []string{"pay-invoice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, cfgPath, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}
