package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbertolli/convopulse/internal/dialogue"
)

// Metrics groups all Prometheus instruments used by the service, plus the
// in-process trend window behind /v1/health/trend.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	TurnsIngested  *prometheus.CounterVec
	AlertsTotal    *prometheus.CounterVec
	StatusTotal    *prometheus.CounterVec
	DriftScore     prometheus.Histogram
	EvalLatency    prometheus.Histogram
	WSMessages     *prometheus.CounterVec

	trend *trendWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active tracked conversations.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		TurnsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_ingested_total",
			Help:      "Turns ingested by speaker.",
		}, []string{"speaker"}),
		AlertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Health alerts by kind.",
		}, []string{"kind"}),
		StatusTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statuses_total",
			Help:      "Snapshot statuses by value.",
		}, []string{"status"}),
		DriftScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drift_score",
			Help:      "Drift-on-specifics per evaluated question/response pair.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		}),
		EvalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_latency_ms",
			Help:      "Turn ingestion to snapshot latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		trend: newTrendWindow(256),
	}
}

// ObserveSnapshot records one evaluation result across all instruments.
func (m *Metrics) ObserveSnapshot(snap dialogue.Snapshot, elapsed time.Duration) {
	m.StatusTotal.WithLabelValues(string(snap.Status)).Inc()
	m.EvalLatency.Observe(float64(elapsed.Milliseconds()))
	m.trend.Observe("eval_latency_ms", float64(elapsed.Milliseconds()))

	if snap.Metrics.Drift != nil {
		m.DriftScore.Observe(*snap.Metrics.Drift)
		m.trend.Observe("drift", *snap.Metrics.Drift)
	}
	if snap.Metrics.Coherence != nil {
		m.trend.Observe("coherence", *snap.Metrics.Coherence)
	}
	if snap.Metrics.QARatio != nil {
		m.trend.Observe("qa_ratio", *snap.Metrics.QARatio)
	}
	for _, alert := range snap.Alerts {
		m.AlertsTotal.WithLabelValues(string(alert.Kind)).Inc()
		m.trend.ObserveAlert(string(alert.Kind))
	}
}

// SnapshotTrend exposes the recent-metric trend window.
func (m *Metrics) SnapshotTrend() TrendSnapshot {
	return m.trend.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
