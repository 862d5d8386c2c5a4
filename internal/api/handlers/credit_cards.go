package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CreditCardsHandler handles credit card endpoints.
type CreditCardsHandler struct {
	ledger Ledger
}

// NewCreditCardsHandler creates a new credit cards handler.
func NewCreditCardsHandler(ledger Ledger) *CreditCardsHandler {
	return &CreditCardsHandler{ledger: ledger}
}

// ListCreditCards handles GET /api/credit-cards
func (h *CreditCardsHandler) ListCreditCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cards, err := h.ledger.ListCreditCards(ctx)
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to list credit cards")
		return
	}

	if cards == nil {
		cards = []*domain.CreditCard{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"credit_cards": cards,
		"count":        len(cards),
	})
}

// GetCreditCard handles GET /api/credit-cards/{id}
func (h *CreditCardsHandler) GetCreditCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	card, err := h.ledger.GetCreditCard(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to get credit card")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"credit_card": card,
		"available":   card.Available(),
		"invoice":     domain.InvoiceWindow(card, time.Now()),
	})
}

// CreateCreditCard handles POST /api/credit-cards
func (h *CreditCardsHandler) CreateCreditCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req struct {
		Name       string            `json:"name"`
		CardLimit  decimal.Decimal   `json:"card_limit"`
		DueDay     int               `json:"due_day"`
		ClosingDay int               `json:"closing_day"`
		Status     domain.CardStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeEngineError(w, log, err, "Invalid request body")
		return
	}

	card, err := h.ledger.CreateCreditCard(ctx, &domain.CreditCard{
		Name:       req.Name,
		CardLimit:  req.CardLimit,
		DueDay:     req.DueDay,
		ClosingDay: req.ClosingDay,
		Status:     req.Status,
	})
	if err != nil {
		writeEngineError(w, log, err, "Failed to create credit card")
		return
	}

	log.Info().Str("credit_card_id", card.ID).Msg("Credit card created")
	middleware.WriteJSON(w, http.StatusCreated, card)
}

// PayInvoice handles POST /api/credit-cards/{id}/pay-invoice
func (h *CreditCardsHandler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	cardID := chi.URLParam(r, "id")

	var req struct {
		AccountID string `json:"account_id"`
		Date      string `json:"date"`
	}
	if err := decode(r, &req); err != nil {
		writeEngineError(w, log, err, "Invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeEngineError(w, log, err, "Invalid date")
		return
	}

	payment, err := h.ledger.PayCardInvoice(ctx, cardID, req.AccountID, date)
	if err != nil {
		writeEngineError(w, log, err, "Failed to pay invoice")
		return
	}

	log.Info().
		Str("credit_card_id", cardID).
		Str("transaction_id", payment.Transaction.ID).
		Int64("bills_paid", payment.BillsPaid).
		Msg("Invoice paid")
	middleware.WriteJSON(w, http.StatusOK, payment)
}
