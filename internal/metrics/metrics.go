// Package metrics exposes Prometheus instruments for the relay server and the
// treasure generator. A Recorder is either backed by a registry or a no-op.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Generation outcomes.
const (
	OutcomeModel    = "model"
	OutcomeCoerced  = "coerced"
	OutcomeFallback = "fallback"
)

type Recorder interface {
	IncGeneration(outcome string)
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	ObserveUpstreamDuration(status int, duration time.Duration)
}

type provider struct {
	generations      *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamDuration *prometheus.HistogramVec
}

// New registers the instruments on reg and returns a Recorder backed by them.
func New(reg prometheus.Registerer) Recorder {
	p := &provider{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowtreasure_generations_total",
			Help: "Treasure generations by outcome",
		}, []string{"outcome"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowtreasure_relay_requests_total",
			Help: "Total number of relay HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowtreasure_relay_request_duration_seconds",
			Help:    "Relay HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowtreasure_upstream_duration_seconds",
			Help:    "Duration of upstream model calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"status"}),
	}
	reg.MustRegister(p.generations, p.requestsTotal, p.requestDuration, p.upstreamDuration)
	return p
}

func (p *provider) IncGeneration(outcome string) {
	p.generations.WithLabelValues(outcome).Inc()
}

func (p *provider) IncRequestsTotal(endpoint string, status int) {
	p.requestsTotal.WithLabelValues(endpoint, StatusBucket(status)).Inc()
}

func (p *provider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	p.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (p *provider) ObserveUpstreamDuration(status int, duration time.Duration) {
	p.upstreamDuration.WithLabelValues(StatusBucket(status)).Observe(duration.Seconds())
}

// StatusBucket collapses an HTTP status into its class ("2xx", "5xx", ...).
// Zero means the request never produced a status.
func StatusBucket(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop returns a Recorder that discards everything.
func Noop() Recorder { return noop{} }

type noop struct{}

func (noop) IncGeneration(_ string)                          {}
func (noop) IncRequestsTotal(_ string, _ int)                {}
func (noop) ObserveRequestDuration(_ string, _ time.Duration) {}
func (noop) ObserveUpstreamDuration(_ int, _ time.Duration)  {}
