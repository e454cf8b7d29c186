package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for loader metrics.
const (
	resultSuccess = "success"
	resultError   = "error"

	outcomeInserted = "inserted"
	outcomeUpdated  = "updated"
	outcomeRaced    = "raced"
	outcomeFailed   = "failed"
)

type loaderMetrics struct {
	recordsTotal        *prometheus.CounterVec
	retriesTotal        prometheus.Counter
	upsertDuration      *prometheus.HistogramVec
	dimensionResolution *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *loaderMetrics {
	return &loaderMetrics{
		recordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobmart",
			Subsystem: "loader",
			Name:      "records_total",
			Help:      "Total number of records processed by batch loads.",
		}, []string{"result"}),
		retriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "jobmart",
			Subsystem: "loader",
			Name:      "retries_total",
			Help:      "Total number of record retries after transient failures.",
		}),
		upsertDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jobmart",
			Subsystem: "loader",
			Name:      "upsert_duration_seconds",
			Help:      "Latency distribution for a full record upsert, including retries.",
			Buckets: []float64{
				0.005, 0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"result"}),
		dimensionResolution: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobmart",
			Name:      "dimension_resolutions_total",
			Help:      "Total number of dimension resolutions by outcome.",
		}, []string{"dimension", "outcome"}),
	}
})

func getMetrics() *loaderMetrics {
	return metricsSingleton()
}

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
