package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/dvloznov/finance-ledger/internal/report"
	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	var bucket, from string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report cross-entity inconsistencies without changing anything",
		Long: `Audit reads every account, card, bill and transaction and reports
paid bills without a settlement, open bills with one, duplicate settlements,
orphaned transactions and stored balances that drift from the ledger.

With --export-bucket the report is also written to Cloud Storage.
With --from a previously exported report is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd.Context())

			var (
				r        *reconcile.AuditReport
				exporter *report.Exporter
			)
			if bucket != "" || from != "" {
				storage, err := report.NewGCSStorageService(ctx)
				if err != nil {
					return err
				}
				defer storage.Close()
				exporter = report.NewExporter(storage, bucket)
			}

			if from != "" {
				fetched, err := exporter.Fetch(ctx, from)
				if err != nil {
					return err
				}
				r = fetched
			} else {
				audited, err := a.engine.Audit(ctx)
				if err != nil {
					return err
				}
				r = audited
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(r); err != nil {
					return err
				}
			} else {
				printReport(out, r)
			}

			if from == "" && exporter != nil {
				uri, err := exporter.Export(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Exported to %s\n", uri)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "export-bucket", "", "Cloud Storage bucket to export the report to")
	cmd.Flags().StringVar(&from, "from", "", "Print an exported report (gs://bucket/object) instead of auditing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(out io.Writer, r *reconcile.AuditReport) {
	fmt.Fprintf(out, "\n=== Audit %s ===\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	if r.Clean() {
		fmt.Fprintln(out, "No inconsistencies found.")
		return
	}
	printIDs(out, "Paid bills without settlement", r.PaidWithoutSettlement)
	printIDs(out, "Open bills with settlement", r.OpenWithSettlement)
	printIDs(out, "Bills with duplicate settlements", r.DuplicateSettlements)
	printIDs(out, "Orphaned transactions", r.OrphanedTransactions)
	printDrift(out, "Account balance drift", r.AccountDrift)
	printDrift(out, "Card usage drift", r.CardDrift)
}

func printIDs(out io.Writer, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "   %s\n", id)
	}
}

func printDrift(out io.Writer, title string, drift []reconcile.Drift) {
	if len(drift) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(drift))
	for _, d := range drift {
		fmt.Fprintf(out, "   %s  stored %s  computed %s\n", d.ID, d.Stored.StringFixed(2), d.Computed.StringFixed(2))
	}
}

func newRepairCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Apply the idempotent fixes for what audit reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.engine.Repair(a.ctx(cmd.Context()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Repair completed.")
			fmt.Fprintf(out, "   Bills reopened:      %d\n", res.BillsReopened)
			fmt.Fprintf(out, "   Settlements removed: %d\n", res.SettlementsRemoved)
			fmt.Fprintf(out, "   Balances fixed:      %d\n", res.BalancesFixed)
			fmt.Fprintf(out, "   Used amounts fixed:  %d\n", res.UsedAmountsFixed)
			return nil
		},
	}
}
