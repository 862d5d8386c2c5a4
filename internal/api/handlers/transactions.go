package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	ledger Ledger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger Ledger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger}
}

type transactionRequest struct {
	Description  string                   `json:"description"`
	Amount       decimal.Decimal          `json:"amount"`
	Type         domain.TransactionType   `json:"type"`
	Status       domain.TransactionStatus `json:"status"`
	Kind         domain.TransactionKind   `json:"kind"`
	AccountID    string                   `json:"account_id"`
	CreditCardID string                   `json:"credit_card_id"`
	BillID       string                   `json:"bill_id"`
	Date         string                   `json:"date"`
}

func (req *transactionRequest) toDomain() (*domain.Transaction, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		Description:  req.Description,
		Amount:       req.Amount,
		Type:         req.Type,
		Status:       req.Status,
		Kind:         req.Kind,
		AccountID:    req.AccountID,
		CreditCardID: req.CreditCardID,
		BillID:       req.BillID,
		Date:         date,
	}, nil
}

// ListTransactions handles GET /api/transactions
// Query parameters account_id, credit_card_id, bill_id, status, type and kind
// narrow the result by equality.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := store.TransactionFilter{
		AccountID:    query.Get("account_id"),
		CreditCardID: query.Get("credit_card_id"),
		BillID:       query.Get("bill_id"),
		Status:       domain.TransactionStatus(query.Get("status")),
		Type:         domain.TransactionType(query.Get("type")),
		Kind:         domain.TransactionKind(query.Get("kind")),
	}

	transactions, err := h.ledger.ListTransactions(ctx, filter)
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to list transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req transactionRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, log, err, "Invalid request body")
		return
	}
	t, err := req.toDomain()
	if err != nil {
		writeEngineError(w, log, err, "Invalid transaction")
		return
	}

	created, err := h.ledger.CreateTransaction(ctx, t)
	if err != nil {
		writeEngineError(w, log, err, "Failed to create transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req transactionRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, log, err, "Invalid request body")
		return
	}
	t, err := req.toDomain()
	if err != nil {
		writeEngineError(w, log, err, "Invalid transaction")
		return
	}
	t.ID = chi.URLParam(r, "id")

	updated, err := h.ledger.UpdateTransaction(ctx, t)
	if err != nil {
		writeEngineError(w, log, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.ledger.DeleteTransaction(ctx, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
