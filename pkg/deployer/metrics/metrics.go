package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "deploy_v3"

const (
	OutcomeDeployed = "deployed"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

type Metricer interface {
	RecordStep(step string, outcome string, dur time.Duration)
	RecordTxSent(kind string)
	RecordTxConfirmed(latency time.Duration)
	RecordNonce(nonce uint64)
	RecordStateEntries(n int)
	RecordError(kind string)
}

type Metrics struct {
	registry *prometheus.Registry

	stepsTotal       *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	txsSentTotal     *prometheus.CounterVec
	txConfirmLatency prometheus.Histogram
	nonce            prometheus.Gauge
	stateEntries     prometheus.Gauge
	errorsTotal      *prometheus.CounterVec
	lastRunTimestamp prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)
	m := &Metrics{
		registry: registry,
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "steps_total",
			Help:      "Migration steps run, by step and outcome",
		}, []string{
			"step",
			"outcome",
		}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "step_duration_seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			Help:      "Histogram of migration step durations",
		}, []string{
			"step",
		}),
		txsSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "txs_sent_total",
			Help:      "Transactions submitted, by kind",
		}, []string{
			"kind",
		}),
		txConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tx_confirmation_latency_seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 900},
			Help:      "Time from submission until the required confirmations were reached",
		}),
		nonce: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "nonce",
			Help:      "Nonce of the last submitted transaction",
		}),
		stateEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "state_entries",
			Help:      "Number of addresses recorded in the migration state",
		}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors that stopped the migration, by kind",
		}, []string{
			"kind",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the metrics were last written",
		}),
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordStep(step string, outcome string, dur time.Duration) {
	m.stepsTotal.WithLabelValues(step, outcome).Inc()
	m.stepDuration.WithLabelValues(step).Observe(dur.Seconds())
}

func (m *Metrics) RecordTxSent(kind string) {
	m.txsSentTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordTxConfirmed(latency time.Duration) {
	m.txConfirmLatency.Observe(latency.Seconds())
}

func (m *Metrics) RecordNonce(nonce uint64) {
	m.nonce.Set(float64(nonce))
}

func (m *Metrics) RecordStateEntries(n int) {
	m.stateEntries.Set(float64(n))
}

func (m *Metrics) RecordError(kind string) {
	m.errorsTotal.WithLabelValues(kind).Inc()
}

// WriteTextfile writes every metric to path in the node_exporter textfile
// collector format.
func (m *Metrics) WriteTextfile(path string) error {
	m.lastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.registry)
}
