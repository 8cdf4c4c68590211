package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsPrefix = "claimrisk_"

// Metrics holds the engine's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	claimsScored  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	cacheAccess   *prometheus.CounterVec
	trainingRuns  *prometheus.CounterVec
	trainDuration prometheus.Histogram
	rebuilds      prometheus.Counter
	modelReady    prometheus.Gauge
	storeClaims   prometheus.Gauge
	graphNodes    prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.claimsScored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "claims_scored_total",
		Help: "Claims scored, by risk level.",
	}, []string{"risk_level"})

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricsPrefix + "score_batch_duration_seconds",
		Help:    "Time to extract and score one batch of claims.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	m.cacheAccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "assessment_cache_total",
		Help: "Assessment cache lookups, by result.",
	}, []string{"result"})

	m.trainingRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "training_runs_total",
		Help: "Training runs, by outcome.",
	}, []string{"status"})

	m.trainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricsPrefix + "training_duration_seconds",
		Help:    "Wall time of successful training runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	m.rebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricsPrefix + "snapshot_rebuilds_total",
		Help: "Entity snapshots built and swapped in.",
	})

	m.modelReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricsPrefix + "model_ready",
		Help: "1 when a trained model is loaded.",
	})

	m.storeClaims = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricsPrefix + "snapshot_claims",
		Help: "Claims in the current entity snapshot.",
	})

	m.graphNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricsPrefix + "graph_nodes",
		Help: "Nodes in the current relationship graph.",
	})

	m.Registry.MustRegister(
		m.claimsScored,
		m.batchDuration,
		m.cacheAccess,
		m.trainingRuns,
		m.trainDuration,
		m.rebuilds,
		m.modelReady,
		m.storeClaims,
		m.graphNodes,
	)
	return m
}
