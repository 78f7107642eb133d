package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts session lifecycle outcomes.
type Metrics struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   prometheus.Counter
	reuse     prometheus.Counter
}

// NewMetrics registers the session metrics with reg.
// Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh rotations by result.",
		}, []string{"result"}),
		logouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		reuse: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "auth",
			Name:      "refresh_reuse_detected_total",
			Help:      "Refresh credentials presented after rotation or revocation.",
		}),
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) logout() {
	if m != nil {
		m.logouts.Inc()
	}
}

func (m *Metrics) reuseDetected() {
	if m != nil {
		m.reuse.Inc()
	}
}
