package tracker

import "github.com/prometheus/client_golang/prometheus"

var (
	deltasEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "tracker",
		Name:      "deltas_total",
		Help:      "Number of accounting deltas written, by kind (visit, time).",
	}, []string{"kind"})

	deltaErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "tracker",
		Name:      "delta_errors_total",
		Help:      "Number of accounting deltas the store rejected, by kind.",
	}, []string{"kind"})

	sessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "tracker",
		Name:      "sessions_opened_total",
		Help:      "Number of foreground sessions opened.",
	})

	activeSession = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitetime",
		Subsystem: "tracker",
		Name:      "active_session",
		Help:      "1 while a foreground session is open, 0 otherwise.",
	})

	clockAnomalies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "tracker",
		Name:      "clock_anomalies_total",
		Help:      "Number of sessions closed with a negative elapsed time.",
	})

	eventsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetime",
		Subsystem: "tracker",
		Name:      "events_total",
		Help:      "Number of host events handled, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		deltasEmitted,
		deltaErrors,
		sessionsOpened,
		activeSession,
		clockAnomalies,
		eventsHandled,
	)
}
