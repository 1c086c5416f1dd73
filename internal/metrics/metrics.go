// README: Prometheus collectors for the order pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrderTransitions counts committed status transitions by target status.
	OrderTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Name:      "order_transitions_total",
		Help:      "Order status transitions committed.",
	}, []string{"to_status"})

	// ExpiredPromoted counts orders the expiry poller bumped to ready.
	ExpiredPromoted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chomp",
		Name:      "expired_orders_promoted_total",
		Help:      "Preparing orders auto-promoted to ready.",
	})

	// PaymentConfirms counts gateway confirmations by outcome.
	PaymentConfirms = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Name:      "payment_confirms_total",
		Help:      "Payment verifications by outcome (success, duplicate, failed).",
	}, []string{"outcome"})

	// LoyaltyAwardFailures counts best-effort point awards that did not land.
	LoyaltyAwardFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chomp",
		Name:      "loyalty_award_failures_total",
		Help:      "Loyalty point awards that failed and were only logged.",
	})
)

func init() {
	prometheus.MustRegister(OrderTransitions, ExpiredPromoted, PaymentConfirms, LoyaltyAwardFailures)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
