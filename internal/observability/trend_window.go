package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricTrendStats summarizes recent observations of one health metric.
type MetricTrendStats struct {
	Metric  string  `json:"metric"`
	Samples int     `json:"samples"`
	Last    float64 `json:"last"`
	Avg     float64 `json:"avg"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
}

// AlertTrend counts alerts by kind within process lifetime.
type AlertTrend struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// TrendSnapshot is the payload behind /v1/health/trend.
type TrendSnapshot struct {
	GeneratedAt time.Time          `json:"generated_at"`
	WindowSize  int                `json:"window_size"`
	Metrics     []MetricTrendStats `json:"metrics"`
	Alerts      []AlertTrend       `json:"alerts,omitempty"`
}

// trendWindow keeps a bounded ring of recent values per metric so trend
// queries stay cheap and allocation-free on the hot path.
type trendWindow struct {
	mu         sync.RWMutex
	maxSamples int
	metrics    map[string]*trendBuffer
	alerts     map[string]int
}

type trendBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func newTrendWindow(maxSamples int) *trendWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &trendWindow{
		maxSamples: maxSamples,
		metrics:    make(map[string]*trendBuffer),
		alerts:     make(map[string]int),
	}
}

func (w *trendWindow) Observe(metric string, value float64) {
	if metric == "" || math.IsNaN(value) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.metrics[metric]
	if !ok {
		buf = &trendBuffer{values: make([]float64, w.maxSamples)}
		w.metrics[metric] = buf
	}
	buf.values[buf.next] = value
	buf.last = value
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *trendWindow) ObserveAlert(kind string) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alerts[kind]++
}

func (w *trendWindow) Snapshot() TrendSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.metrics))
	for metric := range w.metrics {
		keys = append(keys, metric)
	}
	sort.Strings(keys)

	metrics := make([]MetricTrendStats, 0, len(keys))
	for _, metric := range keys {
		buf := w.metrics[metric]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		metrics = append(metrics, MetricTrendStats{
			Metric:  metric,
			Samples: n,
			Last:    round4(buf.last),
			Avg:     round4(sum / float64(n)),
			P50:     round4(quantile(samples, 0.50)),
			P95:     round4(quantile(samples, 0.95)),
		})
	}

	alertKeys := make([]string, 0, len(w.alerts))
	for kind := range w.alerts {
		alertKeys = append(alertKeys, kind)
	}
	sort.Strings(alertKeys)

	alerts := make([]AlertTrend, 0, len(alertKeys))
	for _, kind := range alertKeys {
		if w.alerts[kind] <= 0 {
			continue
		}
		alerts = append(alerts, AlertTrend{Kind: kind, Count: w.alerts[kind]})
	}

	return TrendSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Metrics:     metrics,
		Alerts:      alerts,
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
