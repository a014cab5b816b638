package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics counts gateway callback outcomes.
type ReconciliationMetrics struct {
	webhooks *prometheus.CounterVec
	receipts prometheus.Counter
}

// Webhook outcome labels.
const (
	OutcomeSettled  = "settled"
	OutcomeReplayed = "replayed"
	OutcomeIgnored  = "ignored"
	OutcomeMismatch = "mismatch"
	OutcomeError    = "error"
)

// NewReconciliationMetrics registers the webhook metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhooks_total",
		Help: "Gateway callbacks by reconciliation outcome.",
	}, []string{"outcome"})
	receipts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipts_sent_total",
		Help: "Settlement receipts dispatched.",
	})
	reg.MustRegister(webhooks, receipts)
	return &ReconciliationMetrics{
		webhooks: webhooks,
		receipts: receipts,
	}
}

// IncWebhook increments the counter for the given outcome.
func (m *ReconciliationMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}

// IncReceipt increments the dispatched receipt counter.
func (m *ReconciliationMetrics) IncReceipt() {
	if m == nil || m.receipts == nil {
		return
	}
	m.receipts.Inc()
}
