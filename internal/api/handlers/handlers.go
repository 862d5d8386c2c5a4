// Package handlers exposes the reconciliation engine over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/rs/zerolog"
)

// Ledger is the engine surface the handlers use.
type Ledger interface {
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	CreateAccount(ctx context.Context, a *domain.Account) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error)
	GetCreditCard(ctx context.Context, id string) (*domain.CreditCard, error)
	CreateCreditCard(ctx context.Context, c *domain.CreditCard) (*domain.CreditCard, error)
	PayCardInvoice(ctx context.Context, cardID, accountID string, date time.Time) (*reconcile.InvoicePayment, error)

	ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error)
	CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error)
	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	CreateBill(ctx context.Context, b *domain.Bill) (*domain.Bill, error)
	PayBill(ctx context.Context, billID, accountID string, date time.Time) (*domain.Transaction, error)
	RevertBill(ctx context.Context, billID string) (*reconcile.RevertResult, error)
	RefreshOverdue(ctx context.Context, asOf time.Time) (int, error)

	Audit(ctx context.Context) (*reconcile.AuditReport, error)
	Repair(ctx context.Context) (*reconcile.RepairResult, error)
}

var _ Ledger = (*reconcile.Engine)(nil)

// dateLayouts are accepted for date fields, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate parses an optional date. An empty string yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", domain.ErrInvalid, s)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalid)
	}
	return nil
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	var pf *reconcile.PartialFailureError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &pf):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStatusConflict), errors.Is(err, domain.ErrNothingToPay):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError logs err and writes the mapped response. Partial saga
// failures include the steps so a client can tell what was applied.
func writeEngineError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)

	var pf *reconcile.PartialFailureError
	if errors.As(err, &pf) {
		log.Error().Err(err).Str("operation", pf.Operation).Msg(msg)
		middleware.WriteJSON(w, status, map[string]interface{}{
			"error":     pf.Error(),
			"operation": pf.Operation,
			"completed": pf.Completed,
			"failed":    pf.Failed,
		})
		return
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}

	log.Debug().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}
