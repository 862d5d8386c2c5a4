package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// BillsHandler handles bill endpoints.
type BillsHandler struct {
	ledger Ledger
}

// NewBillsHandler creates a new bills handler.
func NewBillsHandler(ledger Ledger) *BillsHandler {
	return &BillsHandler{ledger: ledger}
}

// ListBills handles GET /api/bills
func (h *BillsHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := store.BillFilter{
		Status:       domain.BillStatus(query.Get("status")),
		CreditCardID: query.Get("credit_card_id"),
	}

	bills, err := h.ledger.ListBills(ctx, filter)
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to list bills")
		return
	}

	if bills == nil {
		bills = []*domain.Bill{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"count": len(bills),
	})
}

// GetBill handles GET /api/bills/{id}
func (h *BillsHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bill, err := h.ledger.GetBill(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, logger.FromContext(ctx), err, "Failed to get bill")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bill)
}

// CreateBill handles POST /api/bills
func (h *BillsHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req struct {
		Description  string          `json:"description"`
		Amount       decimal.Decimal `json:"amount"`
		DueDate      string          `json:"due_date"`
		CreditCardID string          `json:"credit_card_id"`
	}
	if err := decode(r, &req); err != nil {
		writeEngineError(w, log, err, "Invalid request body")
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		writeEngineError(w, log, err, "Invalid due date")
		return
	}

	bill, err := h.ledger.CreateBill(ctx, &domain.Bill{
		Description:  req.Description,
		Amount:       req.Amount,
		DueDate:      due,
		CreditCardID: req.CreditCardID,
	})
	if err != nil {
		writeEngineError(w, log, err, "Failed to create bill")
		return
	}

	log.Info().Str("bill_id", bill.ID).Msg("Bill created")
	middleware.WriteJSON(w, http.StatusCreated, bill)
}

// PayBill handles POST /api/bills/{id}/pay
func (h *BillsHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	billID := chi.URLParam(r, "id")

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

	settlement, err := h.ledger.PayBill(ctx, billID, req.AccountID, date)
	if err != nil {
		writeEngineError(w, log, err, "Failed to pay bill")
		return
	}

	log.Info().Str("bill_id", billID).Str("transaction_id", settlement.ID).Msg("Bill paid")
	middleware.WriteJSON(w, http.StatusOK, settlement)
}

// RevertBill handles POST /api/bills/{id}/revert
func (h *BillsHandler) RevertBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	billID := chi.URLParam(r, "id")

	result, err := h.ledger.RevertBill(ctx, billID)
	if err != nil {
		writeEngineError(w, log, err, "Failed to revert bill")
		return
	}

	log.Info().Str("bill_id", billID).Int64("deleted", result.DeletedTransactions).Msg("Bill reverted")
	middleware.WriteJSON(w, http.StatusOK, result)
}

// RefreshOverdue handles POST /api/bills/refresh-overdue
// An optional ?as_of=YYYY-MM-DD replaces the current time.
func (h *BillsHandler) RefreshOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeEngineError(w, log, err, "Invalid as_of")
		return
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	n, err := h.ledger.RefreshOverdue(ctx, asOf)
	if err != nil {
		writeEngineError(w, log, err, "Failed to refresh overdue bills")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"marked_overdue": n})
}
