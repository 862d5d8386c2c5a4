package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPayBillCmd(a *app) *cobra.Command {
	var accountID, date string

	cmd := &cobra.Command{
		Use:   "pay-bill BILL_ID",
		Short: "Pay a bill from an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			t, err := a.engine.PayBill(a.ctx(cmd.Context()), args[0], accountID, when)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paid bill %s: settlement %s for %s\n", args[0], t.ID, t.Amount.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account to pay from")
	cmd.Flags().StringVar(&date, "date", "", "Payment date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newRevertBillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revert-bill BILL_ID",
		Short: "Undo a bill payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.engine.RevertBill(a.ctx(cmd.Context()), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted bill %s: status %s, %d transaction(s) deleted\n",
				res.Bill.ID, res.Bill.Status, res.DeletedTransactions)
			return nil
		},
	}
}

func newPayInvoiceCmd(a *app) *cobra.Command {
	var accountID, date string

	cmd := &cobra.Command{
		Use:   "pay-invoice CARD_ID",
		Short: "Pay a credit card's outstanding usage from an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			p, err := a.engine.PayCardInvoice(a.ctx(cmd.Context()), args[0], accountID, when)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paid invoice of card %s: %s, %d bill(s) marked paid, next due %s\n",
				args[0], p.Transaction.Amount.StringFixed(2), p.BillsPaid, p.Invoice.Due.Format(dateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account to pay from")
	cmd.Flags().StringVar(&date, "date", "", "Payment date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newMarkOverdueCmd(a *app) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Flip pending bills past their due date to overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDateFlag("as-of", asOf)
			if err != nil {
				return err
			}
			if when.IsZero() {
				when = time.Now()
			}
			n, err := a.engine.RefreshOverdue(a.ctx(cmd.Context()), when)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d bill(s) overdue\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Reference date (YYYY-MM-DD, default today)")
	return cmd
}
