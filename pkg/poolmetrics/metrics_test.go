package poolmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopSatisfiesSinkWithoutPanicking(t *testing.T) {
	var sink Sink = Noop{}
	sink.SetPoolSize("redis://node-a", 3)
	sink.SetActiveConnections("redis://node-a", 1)
	sink.SetIdlePools("redis://node-a", 2)
	sink.SetUnhealthyPools("redis://node-a", 0)
	sink.ObserveConnectionLatency("redis://node-a", 10*time.Millisecond)
}

func TestPrometheusRegistersAndRecordsByURL(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.SetPoolSize("redis://node-a", 4)
	p.SetActiveConnections("redis://node-a", 2)
	p.SetIdlePools("redis://node-a", 1)
	p.SetUnhealthyPools("redis://node-a", 1)
	p.ObserveConnectionLatency("redis://node-a", 5*time.Millisecond)

	assert.Equal(t, float64(4), testutil.ToFloat64(p.poolSize.WithLabelValues("redis://node-a")))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.activeConnections.WithLabelValues("redis://node-a")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.idlePools.WithLabelValues("redis://node-a")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.unhealthyPools.WithLabelValues("redis://node-a")))
}

func TestPrometheusDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)
	require.Panics(t, func() { NewPrometheus(reg) })
}
