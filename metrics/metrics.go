// Package metrics exposes Prometheus metrics of the analysis service on a
// dedicated HTTP listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcomes used as the "result" label.
const (
	ResultOK           = "ok"
	ResultInvalidInput = "invalid_input"
	ResultError        = "error"
)

// MetricsServer owns a registry with the service metrics and serves it on
// /metrics. Each server has its own registry so several can coexist in one
// process.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	Analyses         *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	TraceMessages    prometheus.Histogram
	Deanonymized     prometheus.Histogram
	Generated        prometheus.Counter
	Runs             prometheus.Gauge
}

// New creates the metrics of a service. Metric names are prefixed with
// namespace. addr may be empty if the metrics are never served.
func New(namespace, addr string) (*MetricsServer, error) {
	m := &MetricsServer{
		registry: prometheus.NewRegistry(),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Number of trace analyses by result",
		}, []string{"result"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent computing relationship anonymity sets",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		TraceMessages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trace_messages",
			Help:      "Number of messages in analyzed traces",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 7),
		}),
		Deanonymized: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deanonymized_ratio",
			Help:      "Share of sources deanonymized per analysis",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		Generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generated_traces_total",
			Help:      "Number of simulated traces",
		}),
		Runs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_runs",
			Help:      "Number of runs in the store as of the last listing",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Analyses,
		m.AnalysisDuration,
		m.TraceMessages,
		m.Deanonymized,
		m.Generated,
		m.Runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Registry returns the registry holding the service metrics.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsServer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAnalysis records a successful analysis.
func (m *MetricsServer) ObserveAnalysis(took time.Duration, messages, sources, deanonymized int) {
	m.Analyses.WithLabelValues(ResultOK).Inc()
	m.AnalysisDuration.Observe(took.Seconds())
	m.TraceMessages.Observe(float64(messages))
	if sources > 0 {
		m.Deanonymized.Observe(float64(deanonymized) / float64(sources))
	}
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
