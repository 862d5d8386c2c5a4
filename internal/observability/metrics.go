// Package observability holds the Prometheus metrics of the reconciliation engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finledger"

// ─── Recomputation ──────────────────────────────────────────────────────────

// DriftCorrections counts derived values found to differ from storage by more
// than the tolerance. Labelled by entity (account, credit_card).
var DriftCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "recompute",
	Name:      "drift_corrections_total",
	Help:      "Derived values that drifted from storage and were scheduled for write-back.",
}, []string{"entity"})

// RecomputeErrors counts per-entity sub-query failures during recomputation.
var RecomputeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "recompute",
	Name:      "errors_total",
	Help:      "Transaction sub-queries that failed while recomputing a derived value.",
}, []string{"entity"})

// ─── Write-back ─────────────────────────────────────────────────────────────

// WriteBacks counts write-back outcomes (completed, failed, dropped).
var WriteBacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "writeback",
	Name:      "jobs_total",
	Help:      "Write-back jobs by outcome.",
}, []string{"outcome"})

// ─── Sagas ──────────────────────────────────────────────────────────────────

// SagaPartialFailures counts multi-step operations that stopped after a step
// had already been applied.
var SagaPartialFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "saga",
	Name:      "partial_failures_total",
	Help:      "Multi-step operations left partially applied.",
}, []string{"operation", "step"})

// DuplicatePaymentsRejected counts payment attempts that lost the status race.
var DuplicatePaymentsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "saga",
	Name:      "duplicate_payments_rejected_total",
	Help:      "Bill payments rejected because the bill was no longer payable.",
})

// AuditFindings tracks the size of each category in the latest audit.
var AuditFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "audit",
	Name:      "findings",
	Help:      "Inconsistencies found by the most recent audit, by kind.",
}, []string{"kind"})
