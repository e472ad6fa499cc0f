package bmh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transactions per command and outcome. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Transactions  *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	BytesReceived prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmh_transactions_total",
				Help: "Transactions with the module by command and result.",
			},
			[]string{"command", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmh_transaction_duration_seconds",
				Help:    "Time from discard to complete response or timeout.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bmh_bytes_received_total",
			Help: "Response bytes collected from the module.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transactions, m.Duration, m.BytesReceived)
	}
	return m
}

func (m *Metrics) observe(code byte, result string, d time.Duration, received int) {
	if m == nil {
		return
	}
	name := commandName(code)
	m.Transactions.WithLabelValues(name, result).Inc()
	m.Duration.WithLabelValues(name).Observe(d.Seconds())
	m.BytesReceived.Add(float64(received))
}
