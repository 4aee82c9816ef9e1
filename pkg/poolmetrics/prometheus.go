package poolmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is the shipped observability integration: a pull-based
// exporter, grounded on the same Gauge/Histogram shape the teacher's
// Docker connection pool registered for its own pool metrics.
type Prometheus struct {
	poolSize          *prometheus.GaugeVec
	activeConnections *prometheus.GaugeVec
	idlePools         *prometheus.GaugeVec
	unhealthyPools    *prometheus.GaugeVec
	connectionLatency *prometheus.HistogramVec
}

// NewPrometheus builds and registers the collectors against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		poolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "poolmgr_pool_size",
			Help: "Number of pools currently held for a node.",
		}, []string{"url"}),
		activeConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "poolmgr_active_connections",
			Help: "Summed in-flight borrows across a node's pools.",
		}, []string{"url"}),
		idlePools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "poolmgr_idle_pools",
			Help: "Number of pools with zero in-flight borrows for a node.",
		}, []string{"url"}),
		unhealthyPools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "poolmgr_unhealthy_pools",
			Help: "Number of pools currently marked unhealthy for a node.",
		}, []string{"url"}),
		connectionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poolmgr_connection_latency_seconds",
			Help:    "Time taken for GetClient to hand out (or fail to hand out) a borrow.",
			Buckets: prometheus.DefBuckets,
		}, []string{"url"}),
	}

	reg.MustRegister(
		p.poolSize,
		p.activeConnections,
		p.idlePools,
		p.unhealthyPools,
		p.connectionLatency,
	)

	return p
}

func (p *Prometheus) SetPoolSize(url string, n int) {
	p.poolSize.WithLabelValues(url).Set(float64(n))
}

func (p *Prometheus) SetActiveConnections(url string, n int) {
	p.activeConnections.WithLabelValues(url).Set(float64(n))
}

func (p *Prometheus) SetIdlePools(url string, n int) {
	p.idlePools.WithLabelValues(url).Set(float64(n))
}

func (p *Prometheus) SetUnhealthyPools(url string, n int) {
	p.unhealthyPools.WithLabelValues(url).Set(float64(n))
}

func (p *Prometheus) ObserveConnectionLatency(url string, d time.Duration) {
	p.connectionLatency.WithLabelValues(url).Observe(d.Seconds())
}
