package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthFailuresTotal counts rejected OAuth and webhook requests by check.
	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "trust",
		Name:      "auth_failures_total",
		Help:      "Requests rejected by the state, HMAC or webhook signature check.",
	}, []string{"check"})

	// InstallsTotal counts completed OAuth installs.
	InstallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "trust",
		Name:      "app_installs_total",
		Help:      "Completed OAuth installations.",
	})

	// ChargesCreatedTotal counts platform charges created by kind and outcome.
	ChargesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "billing",
		Name:      "charges_created_total",
		Help:      "Charge creation attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	// ChargesReconciledTotal counts charge transitions by target status.
	ChargesReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "billing",
		Name:      "charges_reconciled_total",
		Help:      "Charge reconciliations by resulting status and whether the row moved.",
	}, []string{"status", "moved"})

	// ReconciliationGapsTotal counts detected ledger gaps by reason.
	ReconciliationGapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "billing",
		Name:      "reconciliation_gaps_total",
		Help:      "Reconciliation gaps detected by reason.",
	}, []string{"reason"})

	// SweepResolvedTotal counts gaps closed by the sweep.
	SweepResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "billing",
		Name:      "sweep_resolved_gaps_total",
		Help:      "Reconciliation gaps resolved by the sweep.",
	})

	// SectionInstallsTotal counts section install attempts by outcome.
	SectionInstallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sectionhub",
		Subsystem: "catalog",
		Name:      "section_installs_total",
		Help:      "Section install attempts by outcome.",
	}, []string{"outcome"})

	// PlatformCallDuration tracks outbound platform API latency by operation.
	PlatformCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sectionhub",
		Subsystem: "platform",
		Name:      "call_duration_seconds",
		Help:      "Outbound platform API call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)
