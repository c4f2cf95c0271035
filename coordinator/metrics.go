package coordinator

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "da_coordinator"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Submission rounds by final status.
	Rounds metrics.Counter
	// Duration of a submission round.
	RoundDuration metrics.Histogram
	// Threshold of the latest round.
	Threshold metrics.Gauge
	// Acknowledgements collected in the latest round.
	Achieved metrics.Gauge
	// Backend outcomes by backend and status.
	BackendOutcomes metrics.Counter
	// Payload bytes acknowledged per backend.
	BytesSubmitted metrics.Counter
	// Read-back verifications by backend and result.
	Verifications metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Rounds: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rounds_total",
			Help:      "Number of submission rounds by final status.",
		}, withLabels(labels, "status")).With(labelsAndValues...),
		RoundDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "round_duration_seconds",
			Help:      "Duration of a submission round.",
			Buckets:   stdprometheus.ExponentialBuckets(0.01, 2, 14),
		}, labels).With(labelsAndValues...),
		Threshold: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "threshold",
			Help:      "Acknowledgements required by the latest round.",
		}, labels).With(labelsAndValues...),
		Achieved: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "achieved",
			Help:      "Acknowledgements collected by the latest round.",
		}, labels).With(labelsAndValues...),
		BackendOutcomes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "backend_outcomes_total",
			Help:      "Number of backend outcomes by backend and status.",
		}, withLabels(labels, "backend", "status")).With(labelsAndValues...),
		BytesSubmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "submitted_bytes_total",
			Help:      "Payload bytes acknowledged by each backend.",
		}, withLabels(labels, "backend")).With(labelsAndValues...),
		Verifications: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "verifications_total",
			Help:      "Read-back verifications by backend and result.",
		}, withLabels(labels, "backend", "result")).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Rounds:          discard.NewCounter(),
		RoundDuration:   discard.NewHistogram(),
		Threshold:       discard.NewGauge(),
		Achieved:        discard.NewGauge(),
		BackendOutcomes: discard.NewCounter(),
		BytesSubmitted:  discard.NewCounter(),
		Verifications:   discard.NewCounter(),
	}
}

func withLabels(labels []string, extra ...string) []string {
	out := make([]string, 0, len(labels)+len(extra))
	return append(append(out, labels...), extra...)
}
