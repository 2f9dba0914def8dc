package secredit

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionMetrics tracks crypto worker traffic. A nil *sessionMetrics is valid
// and records nothing.
type sessionMetrics struct {
	requests *prometheus.CounterVec
	respawns *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  prometheus.Gauge
}

func newSessionMetrics(reg prometheus.Registerer) *sessionMetrics {
	if reg == nil {
		return nil
	}
	m := &sessionMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secredit_worker_requests_total",
			Help: "Crypto worker requests by type and outcome.",
		}, []string{"type", "outcome"}),
		respawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secredit_worker_respawns_total",
			Help: "Crypto worker respawns by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secredit_worker_request_seconds",
			Help:    "Crypto worker request latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"type"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "secredit_worker_pending",
			Help: "Crypto worker requests awaiting a response.",
		}),
	}
	m.requests = registerOrExisting(reg, m.requests)
	m.respawns = registerOrExisting(reg, m.respawns)
	m.duration = registerOrExisting(reg, m.duration)
	m.pending = registerOrExisting(reg, m.pending)
	return m
}

// registerOrExisting registers c, or returns the collector already registered
// under the same descriptor so several sessions can share one registry.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *sessionMetrics) observe(typ requestType, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(typ), outcomeLabel(err)).Inc()
	m.duration.WithLabelValues(string(typ)).Observe(elapsed.Seconds())
}

func (m *sessionMetrics) respawn(reason string) {
	if m == nil {
		return
	}
	m.respawns.WithLabelValues(reason).Inc()
}

func (m *sessionMetrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrWrongKey):
		return "wrong_key"
	case errors.Is(err, ErrDecode), errors.Is(err, ErrDecompressionLimit), errors.Is(err, ErrInvalidKDF):
		return "invalid_data"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "failed"
	}
}
