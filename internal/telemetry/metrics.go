package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order outcomes recorded by RecordOrder.
const (
	OutcomePlaced        = "placed"
	OutcomeInvalid       = "invalid"
	OutcomePaymentFailed = "payment_failed"
	OutcomeFailed        = "failed"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	OrdersTotal          *prometheus.CounterVec
	RemoteRequestsTotal  *prometheus.CounterVec
	RemoteDuration       *prometheus.HistogramVec
	CompensationRequired prometheus.Counter
	LabelsTotal          *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_orders_total",
				Help: "Total number of order placements by outcome",
			},
			[]string{"outcome"},
		),
		RemoteRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_remote_requests_total",
				Help: "Total number of calls to remote systems by service, operation, and status",
			},
			[]string{"service", "operation", "status"},
		),
		RemoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_remote_request_duration_seconds",
				Help:    "Remote call duration in seconds by service and operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		CompensationRequired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_compensation_required_total",
				Help: "POS orders left unpaid that could not be voided and need manual reconciliation",
			},
		),
		LabelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_shipping_labels_total",
				Help: "Total number of shipping label purchases by carrier and status",
			},
			[]string{"carrier", "status"},
		),
	}
}

// RecordOrder counts an order placement.
func (m *Metrics) RecordOrder(outcome string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(outcome).Inc()
}

// RecordRemote records a call to a remote system.
func (m *Metrics) RecordRemote(service, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.RemoteRequestsTotal.WithLabelValues(service, operation, status).Inc()
	m.RemoteDuration.WithLabelValues(service, operation).Observe(duration)
}

// RecordCompensation counts an order that needs manual reconciliation.
func (m *Metrics) RecordCompensation() {
	if m == nil {
		return
	}
	m.CompensationRequired.Inc()
}

// RecordLabel counts a label purchase.
func (m *Metrics) RecordLabel(carrier, status string) {
	if m == nil {
		return
	}
	m.LabelsTotal.WithLabelValues(carrier, status).Inc()
}
