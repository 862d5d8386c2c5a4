package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig carries the dependencies of NewRouter.
type RouterConfig struct {
	Ledger Ledger
	// Jobs is the write-back job store; nil disables /api/jobs.
	Jobs jobs.JobStore
	// Exporter publishes audit reports; nil disables ?export=true.
	Exporter Exporter
	// AuthToken is the required bearer token; empty disables auth.
	AuthToken string
	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
	Log     zerolog.Logger
}

// NewRouter returns the chi router with all routes mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.CORS)
	r.Use(middleware.Auth(cfg.AuthToken, "/health", "/metrics"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	accounts := NewAccountsHandler(cfg.Ledger)
	cards := NewCreditCardsHandler(cfg.Ledger)
	transactions := NewTransactionsHandler(cfg.Ledger)
	bills := NewBillsHandler(cfg.Ledger)
	audit := NewAuditHandler(cfg.Ledger, cfg.Exporter)

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accounts.ListAccounts)
			r.Post("/", accounts.CreateAccount)
			r.Get("/{id}", accounts.GetAccount)
			r.Delete("/{id}", accounts.DeleteAccount)
		})

		r.Route("/credit-cards", func(r chi.Router) {
			r.Get("/", cards.ListCreditCards)
			r.Post("/", cards.CreateCreditCard)
			r.Get("/{id}", cards.GetCreditCard)
			r.Post("/{id}/pay-invoice", cards.PayInvoice)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactions.ListTransactions)
			r.Post("/", transactions.CreateTransaction)
			r.Put("/{id}", transactions.UpdateTransaction)
			r.Delete("/{id}", transactions.DeleteTransaction)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", bills.ListBills)
			r.Post("/", bills.CreateBill)
			r.Post("/refresh-overdue", bills.RefreshOverdue)
			r.Get("/{id}", bills.GetBill)
			r.Post("/{id}/pay", bills.PayBill)
			r.Post("/{id}/revert", bills.RevertBill)
		})

		r.Get("/audit", audit.Audit)
		r.Post("/repair", audit.Repair)

		if cfg.Jobs != nil {
			jh := NewJobsHandler(cfg.Jobs)
			r.Get("/jobs", jh.ListJobs)
			r.Get("/jobs/{id}", jh.GetJob)
		}
	})

	return r
}
