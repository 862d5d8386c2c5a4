package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
)

// Exporter stores an audit report and returns where it went.
type Exporter interface {
	Export(ctx context.Context, r *reconcile.AuditReport) (string, error)
}

// AuditHandler handles the consistency audit endpoints.
type AuditHandler struct {
	ledger   Ledger
	exporter Exporter
}

// NewAuditHandler creates a new audit handler. exporter may be nil.
func NewAuditHandler(ledger Ledger, exporter Exporter) *AuditHandler {
	return &AuditHandler{ledger: ledger, exporter: exporter}
}

// Audit handles GET /api/audit
// With ?export=true the report is also written to the configured bucket.
func (h *AuditHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	report, err := h.ledger.Audit(ctx)
	if err != nil {
		writeEngineError(w, log, err, "Failed to run audit")
		return
	}

	resp := map[string]interface{}{
		"report": report,
		"clean":  report.Clean(),
	}

	if r.URL.Query().Get("export") == "true" {
		if h.exporter == nil {
			middleware.WriteError(w, http.StatusBadRequest, "No report bucket configured")
			return
		}
		uri, err := h.exporter.Export(ctx, report)
		if err != nil {
			log.Error().Err(err).Msg("Failed to export audit report")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to export audit report")
			return
		}
		resp["export_uri"] = uri
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Repair handles POST /api/repair
func (h *AuditHandler) Repair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	result, err := h.ledger.Repair(ctx)
	if err != nil {
		writeEngineError(w, log, err, "Repair failed")
		return
	}

	log.Info().
		Int("bills_reopened", result.BillsReopened).
		Int("settlements_removed", result.SettlementsRemoved).
		Int("balances_fixed", result.BalancesFixed).
		Int("used_amounts_fixed", result.UsedAmountsFixed).
		Msg("Repair completed")
	middleware.WriteJSON(w, http.StatusOK, result)
}
