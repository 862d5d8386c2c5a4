package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/finance-ledger/internal/bootstrap"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once the root pre-run has opened the store.
type app struct {
	configPath string
	log        zerolog.Logger
	store      store.Store
	engine     *reconcile.Engine
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "finledger",
		Short: "Finance ledger reconciliation CLI",
		Long: `Inspect and reconcile the finance ledger.
Balances and card usage are recomputed from transactions on every read;
corrections are written back before the command exits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("FINLEDGER_CONFIG"), "Path to YAML config file")

	root.AddCommand(
		newAccountsCmd(a),
		newCardsCmd(a),
		newBillsCmd(a),
		newPayBillCmd(a),
		newRevertBillCmd(a),
		newPayInvoiceCmd(a),
		newAuditCmd(a),
		newRepairCmd(a),
		newMarkOverdueCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.log = logger.NewWithOptions(logger.Options{Format: cfg.Log.Format, Level: cfg.Log.Level})

	st, err := bootstrap.OpenStore(a.ctx(ctx), cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.store = st

	// No queue: corrections are persisted before the command returns.
	a.engine, err = bootstrap.NewEngine(cfg, st, nil, a.log)
	return err
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// ctx attaches the command logger to a command context.
func (a *app) ctx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContext(ctx, a.log)
}
