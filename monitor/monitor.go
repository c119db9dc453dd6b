package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	NumbersCalled    prometheus.Counter
	RoundsCompleted  prometheus.Counter
	Claims           *prometheus.CounterVec
	ConnectedClients prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		NumbersCalled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "numbers_called_total",
			Help:      "Total numbers called across all rounds",
		}),
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Rounds that reached a terminal state",
		}),
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claim attempts by outcome",
		}, []string{"result"}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Currently connected websocket clients",
		}),
	}

	prometheus.MustRegister(
		m.NumbersCalled,
		m.RoundsCompleted,
		m.Claims,
		m.ConnectedClients,
	)

	return m
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
