package storage

import "github.com/prometheus/client_golang/prometheus"

var (
	upsertCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "storage",
		Name:      "upserts_total",
		Help:      "Number of accounting deltas applied to browsing records.",
	})

	storageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "storage",
		Name:      "errors_total",
		Help:      "Number of failed storage operations grouped by operation.",
	}, []string{"op"})

	lastWriteGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitetime",
		Subsystem: "storage",
		Name:      "last_write_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful upsert.",
	})
)

func init() {
	prometheus.MustRegister(upsertCounter, storageErrors, lastWriteGauge)
}
