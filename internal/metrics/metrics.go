// Package metrics holds the Prometheus collectors shared by the ledger, the
// reconciliation engine and the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finance"

// ─── Ledger ─────────────────────────────────────────────────────────────────

// LedgerMutations counts committed balance changes by change kind.
var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "mutations_total",
	Help:      "Committed balance changes by change kind.",
}, []string{"kind"})

// Transfers counts transfer attempts by outcome.
var Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "transfers_total",
	Help:      "Transfer attempts by outcome.",
}, []string{"outcome"})

// ─── Reconciliation ─────────────────────────────────────────────────────────

// ReconcilePasses counts finished passes by final state.
var ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "passes_total",
	Help:      "Finished reconciliation passes by final state.",
}, []string{"state"})

// ReconcileRecords counts per-record outcomes of committed passes.
var ReconcileRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "records_total",
	Help:      "Reconciled records by action (created, updated, deleted, unchanged, error).",
}, []string{"action"})

// ReconcileFetchRetries counts retried provider fetches.
var ReconcileFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "fetch_retries_total",
	Help:      "Provider fetch attempts that were retried after a transient failure.",
})

// ReconcileDuration observes pass wall time.
var ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "pass_duration_seconds",
	Help:      "Wall time of reconciliation passes.",
	Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts served requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route and status code.",
}, []string{"route", "status"})
