package behavior

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// Metrics holds the Prometheus collectors used by the Observe behavior.
// Create it once per registerer and share it between pipelines.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewMetrics creates and registers the pipeline collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mediate",
				Subsystem: "pipeline",
				Name:      "requests_total",
				Help:      "Total number of dispatched requests by outcome",
			},
			[]string{"request", "outcome"},
		),

		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mediate",
				Subsystem: "pipeline",
				Name:      "request_duration_seconds",
				Help:      "Time spent in the rest of the pipeline",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"request"},
		),

		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mediate",
				Subsystem: "pipeline",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being handled",
			},
			[]string{"request"},
		),
	}
}

// Observe returns a behavior that records m for every request.
func Observe[Req, Resp any](m *Metrics) pipeline.Behavior[Req, Resp] {
	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		name := RequestName(req)

		inFlight := m.InFlight.WithLabelValues(name)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		resp, err := next(ctx)

		m.Duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		m.Requests.WithLabelValues(name, Outcome(err)).Inc()

		return resp, err
	})
}
