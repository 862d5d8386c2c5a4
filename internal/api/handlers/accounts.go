package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	ledger Ledger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(ledger Ledger) *AccountsHandler {
	return &AccountsHandler{ledger: ledger}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.ledger.ListAccounts(ctx)
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to list accounts")
		return
	}

	if accounts == nil {
		accounts = []*domain.Account{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := h.ledger.GetAccount(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to get account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req struct {
		Name           string             `json:"name"`
		Type           domain.AccountType `json:"type"`
		OpeningBalance decimal.Decimal    `json:"opening_balance"`
	}
	if err := decode(r, &req); err != nil {
		writeEngineError(w, log, err, "Invalid request body")
		return
	}

	account, err := h.ledger.CreateAccount(ctx, &domain.Account{
		Name:    req.Name,
		Type:    req.Type,
		Balance: req.OpeningBalance,
	})
	if err != nil {
		writeEngineError(w, log, err, "Failed to create account")
		return
	}

	log.Info().Str("account_id", account.ID).Msg("Account created")
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.ledger.DeleteAccount(ctx, id); err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
