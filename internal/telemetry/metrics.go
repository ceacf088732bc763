package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of process-local Prometheus collectors. This is pure
// ambient instrumentation: it observes the pipeline, it does not change
// pipeline behavior. Collectors are registered against their own Registry
// rather than the package-global default, so multiple instances can
// coexist in one process (tests build one per store/server fixture).
type Metrics struct {
	Registry *prometheus.Registry

	TickDuration   prometheus.Histogram
	OutliersFound  prometheus.Counter
	ActiveSpans    prometheus.Gauge
	StoreRows      *prometheus.CounterVec
	WsClients      prometheus.Gauge
	FeedReconnects *prometheus.CounterVec
}

// NewMetrics builds the collector set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "microstructmon",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one MetricsEngine tick across all configured symbols.",
			Buckets:   prometheus.DefBuckets,
		}),
		OutliersFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "microstructmon",
			Name:      "outliers_detected_total",
			Help:      "Count of outlier records emitted by the detector.",
		}),
		ActiveSpans: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "microstructmon",
			Name:      "outlier_spans_active",
			Help:      "Number of currently open outlier spans.",
		}),
		StoreRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microstructmon",
			Name:      "store_rows_appended_total",
			Help:      "Rows appended per store.",
		}, []string{"store"}),
		WsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "microstructmon",
			Name:      "broadcast_clients",
			Help:      "Currently connected websocket clients.",
		}),
		FeedReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microstructmon",
			Name:      "feed_reconnects_total",
			Help:      "Feed reconnect attempts per adapter.",
		}, []string{"adapter"}),
	}
}
