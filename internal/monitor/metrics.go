package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the latest observed status as Prometheus series.
type Metrics struct {
	height     prometheus.Gauge
	peers      prometheus.Gauge
	catchingUp prometheus.Gauge
	errors     prometheus.Counter
}

// NewMetrics creates the series and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "push",
			Subsystem: "node",
			Name:      "block_height",
			Help:      "Latest block height reported by the node.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "push",
			Subsystem: "node",
			Name:      "peers",
			Help:      "Number of connected peers.",
		}),
		catchingUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "push",
			Subsystem: "node",
			Name:      "catching_up",
			Help:      "1 while the node is catching up with the network, 0 once synced.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "push",
			Subsystem: "node",
			Name:      "status_errors_total",
			Help:      "Status polls that failed to retrieve usable data.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.height, m.peers, m.catchingUp, m.errors)
	}
	return m
}

// Observe records a successful poll.
func (m *Metrics) Observe(s SyncStatus) {
	if m == nil {
		return
	}
	m.height.Set(float64(s.Height))
	m.peers.Set(float64(s.Peers))
	if s.CatchingUp {
		m.catchingUp.Set(1)
	} else {
		m.catchingUp.Set(0)
	}
}

// Failed records a failed poll.
func (m *Metrics) Failed() {
	if m == nil {
		return
	}
	m.errors.Inc()
}
