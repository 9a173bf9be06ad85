package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks the webhook ingestion and reconciliation counters
type Metrics struct {
	WebhookEvents  *prometheus.CounterVec // by event type and outcome
	FallbackWrites prometheus.Counter
	ReconcileRuns  *prometheus.CounterVec // by outcome
	CouponFailures prometheus.Counter
}

// New registers and returns the service metrics
func New() *Metrics {
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attral",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook deliveries by event type and outcome.",
	}, []string{"event", "outcome"})
	fallbackWrites := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attral",
		Subsystem: "orders",
		Name:      "fallback_writes_total",
		Help:      "Orders written through the fallback path after a primary failure.",
	})
	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attral",
		Subsystem: "coupons",
		Name:      "reconcile_runs_total",
		Help:      "Coupon usage reconciliation runs by outcome.",
	}, []string{"outcome"})
	couponFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attral",
		Subsystem: "coupons",
		Name:      "increment_failures_total",
		Help:      "Coupon usage increments that failed (e.g. unknown code).",
	})

	prometheus.MustRegister(webhookEvents, fallbackWrites, reconcileRuns, couponFailures)
	return &Metrics{
		WebhookEvents:  webhookEvents,
		FallbackWrites: fallbackWrites,
		ReconcileRuns:  reconcileRuns,
		CouponFailures: couponFailures,
	}
}

// NewNop returns metrics backed by unregistered collectors, for tests
func NewNop() *Metrics {
	return &Metrics{
		WebhookEvents:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_webhook_events_total"}, []string{"event", "outcome"}),
		FallbackWrites: prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_fallback_writes_total"}),
		ReconcileRuns:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_reconcile_runs_total"}, []string{"outcome"}),
		CouponFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_increment_failures_total"}),
	}
}

// Handler exposes the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
