// Package metrics exposes the Prometheus instruments for the order workflow.
// Everything registers on the default registry and is served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundMessages counts customer messages by the workflow state that
	// received them.
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_inbound_messages_total",
		Help: "Inbound customer messages by workflow state.",
	}, []string{"state"})

	// SessionTransitions counts workflow state transitions.
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_session_transitions_total",
		Help: "Order session transitions by target state.",
	}, []string{"state"})

	// OrdersApproved counts committed approvals.
	OrdersApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflow_orders_approved_total",
		Help: "Orders approved by the owner.",
	})

	// OrdersRejected counts owner rejections.
	OrdersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflow_orders_rejected_total",
		Help: "Orders rejected by the owner.",
	})

	// InvoicesIssued counts invoices created inside approval transactions.
	InvoicesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflow_invoices_issued_total",
		Help: "Invoices issued at approval time.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	requestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
