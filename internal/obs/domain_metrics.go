package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentOrderTotal counts create-order outcomes by currency.
	PaymentOrderTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts client verification outcomes.
	PaymentVerifyTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts webhook outcomes by event type.
	PaymentWebhookTotal *prometheus.CounterVec
	// CreditGrantTotal counts credit grant results by the path that triggered them.
	CreditGrantTotal *prometheus.CounterVec
	// LedgerReconcileTotal counts reconciler sweep outcomes.
	LedgerReconcileTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
// Safe to call more than once; later calls are no-ops.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentOrderTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_order_total",
			Help:      "Count of provider order creation outcomes.",
		}, []string{"currency", "result"}))
		PaymentVerifyTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of client payment verification outcomes.",
		}, []string{"result"}))
		PaymentWebhookTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by event and outcome.",
		}, []string{"event", "result"}))
		CreditGrantTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_grant_total",
			Help:      "Count of credit grant attempts by source and result.",
		}, []string{"source", "result"}))
		LedgerReconcileTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_reconcile_total",
			Help:      "Count of reconciler sweeps by outcome.",
		}, []string{"result"}))
	})
}

// Inc increments a labelled counter, tolerating collectors that were never registered.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}
