package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions   prometheus.Gauge
	sessionsCreated  prometheus.Counter
	sessionsExpired  prometheus.Counter
	sessionsFetched  prometheus.Counter
	pairCodeDuration prometheus.Histogram
	requestsDenied   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "pairing_active_sessions",
					Help: "Current live pairing session count.",
				},
			),
			sessionsCreated: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "pairing_sessions_created_total",
					Help: "Total pairing sessions created.",
				},
			),
			sessionsExpired: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "pairing_sessions_expired_total",
					Help: "Total pairing sessions reclaimed by the expiry sweep.",
				},
			),
			sessionsFetched: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "pairing_sessions_downloaded_total",
					Help: "Total credential bundles downloaded.",
				},
			),
			pairCodeDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "pairing_code_duration_seconds",
					Help:    "Pair code issuance duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			requestsDenied: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pairing_requests_denied_total",
					Help: "Requests denied at the boundary by reason.",
				},
				[]string{"reason"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsCreated,
			m.sessionsExpired,
			m.sessionsFetched,
			m.pairCodeDuration,
			m.requestsDenied,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionCreated(duration time.Duration) {
	m := getMetrics()
	m.sessionsCreated.Inc()
	m.pairCodeDuration.Observe(duration.Seconds())
}

func RecordSessionsExpired(count int) {
	if count <= 0 {
		return
	}
	getMetrics().sessionsExpired.Add(float64(count))
}

func RecordSessionDownloaded() {
	getMetrics().sessionsFetched.Inc()
}

func RecordRequestDenied(reason string) {
	getMetrics().requestsDenied.WithLabelValues(reason).Inc()
}
