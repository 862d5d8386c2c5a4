package main

import (
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// parseDateFlag parses an optional YYYY-MM-DD value. Empty yields the zero time.
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

func newAccountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with reconciled balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.engine.ListAccounts(a.ctx(cmd.Context()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n=== Accounts (%d) ===\n", len(accounts))
			for _, acc := range accounts {
				fmt.Fprintf(out, "%-36s  %-10s  %12s  %s\n", acc.ID, acc.Type, acc.Balance.StringFixed(2), acc.Name)
			}
			return nil
		},
	}
}

func newCardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cards",
		Short: "List credit cards with reconciled usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := a.engine.ListCreditCards(a.ctx(cmd.Context()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			now := time.Now()
			fmt.Fprintf(out, "\n=== Credit cards (%d) ===\n", len(cards))
			for _, c := range cards {
				inv := domain.InvoiceWindow(c, now)
				fmt.Fprintf(out, "\n%s  %s (%s)\n", c.ID, c.Name, c.Status)
				fmt.Fprintf(out, "   Used:      %s / %s\n", c.UsedAmount.StringFixed(2), c.CardLimit.StringFixed(2))
				fmt.Fprintf(out, "   Available: %s\n", c.Available().StringFixed(2))
				fmt.Fprintf(out, "   Closes:    %s\n", inv.Closing.Format(dateLayout))
				fmt.Fprintf(out, "   Due:       %s\n", inv.Due.Format(dateLayout))
			}
			return nil
		},
	}
}

func newBillsCmd(a *app) *cobra.Command {
	var status, cardID string

	cmd := &cobra.Command{
		Use:   "bills",
		Short: "List bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bills, err := a.engine.ListBills(a.ctx(cmd.Context()), store.BillFilter{
				Status:       domain.BillStatus(status),
				CreditCardID: cardID,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n=== Bills (%d) ===\n", len(bills))
			for _, b := range bills {
				due := "-"
				if !b.DueDate.IsZero() {
					due = b.DueDate.Format(dateLayout)
				}
				fmt.Fprintf(out, "%-36s  %-8s  %10s  %12s  %s\n", b.ID, b.Status, due, b.Amount.StringFixed(2), b.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, paid, overdue)")
	cmd.Flags().StringVar(&cardID, "card", "", "Filter by credit card id")
	return cmd
}
