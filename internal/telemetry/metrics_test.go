package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/internal/telemetry"
)

// counterValue sums the counters of family name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordOrder(telemetry.OutcomePlaced)
	m.RecordOrder(telemetry.OutcomePlaced)
	m.RecordOrder(telemetry.OutcomePaymentFailed)
	m.RecordRemote("pos", "create_order", "ok", 0.12)
	m.RecordCompensation()
	m.RecordLabel("usps-v3", "ok")

	assert.Equal(t, 2.0, counterValue(t, reg, "storefront_orders_total", map[string]string{"outcome": "placed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "storefront_orders_total", map[string]string{"outcome": "payment_failed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "storefront_remote_requests_total",
		map[string]string{"service": "pos", "operation": "create_order", "status": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "storefront_compensation_required_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "storefront_shipping_labels_total", map[string]string{"carrier": "usps-v3"}))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.RecordOrder(telemetry.OutcomeFailed)
		m.RecordRemote("pos", "void_order", "error", 1)
		m.RecordCompensation()
		m.RecordLabel("usps-legacy", "error")
	})
}
