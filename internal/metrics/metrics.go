package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	oracleCallsTotal  *prometheus.CounterVec
	cacheHitsTotal    *prometheus.CounterVec
	measurementSkips  *prometheus.CounterVec
	checkpointSaves   prometheus.Counter
	bestScore         *prometheus.GaugeVec
	measurementsTotal *prometheus.GaugeVec
)

// InitMetrics registers all custom metrics with the provided registry
func InitMetrics(registry prometheus.Registerer) {
	oracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_oracle_calls_total",
			Help: "Total number of measurement oracle invocations",
		},
		[]string{"model", "mode"},
	)
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_cache_hits_total",
			Help: "Total number of run configurations served from the checkpoint cache",
		},
		[]string{"model", "mode"},
	)
	measurementSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_measurement_skips_total",
			Help: "Total number of run configurations skipped due to oracle failures",
		},
		[]string{"model", "mode"},
	)
	checkpointSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_checkpoint_saves_total",
			Help: "Total number of checkpoint snapshots written",
		},
	)
	bestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "explorer_best_score",
			Help: "Best objective score seen so far in the active search",
		},
		[]string{"model"},
	)
	measurementsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "explorer_measurements",
			Help: "Number of measurements held in the search state",
		},
		[]string{"model"},
	)

	registry.MustRegister(
		oracleCallsTotal,
		cacheHitsTotal,
		measurementSkips,
		checkpointSaves,
		bestScore,
		measurementsTotal,
	)
}

func RecordOracleCall(model, mode string) {
	if oracleCallsTotal != nil {
		oracleCallsTotal.WithLabelValues(model, mode).Inc()
	}
}

func RecordCacheHit(model, mode string) {
	if cacheHitsTotal != nil {
		cacheHitsTotal.WithLabelValues(model, mode).Inc()
	}
}

func RecordMeasurementSkip(model, mode string) {
	if measurementSkips != nil {
		measurementSkips.WithLabelValues(model, mode).Inc()
	}
}

func RecordCheckpointSave() {
	if checkpointSaves != nil {
		checkpointSaves.Inc()
	}
}

func SetBestScore(model string, score float64) {
	if bestScore != nil {
		bestScore.WithLabelValues(model).Set(score)
	}
}

func SetMeasurementCount(model string, count int) {
	if measurementsTotal != nil {
		measurementsTotal.WithLabelValues(model).Set(float64(count))
	}
}
