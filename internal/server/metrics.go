package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	labelHandler = "handler"

	outcomeOK    = "ok"
	outcomeError = "error"
)

type serverMetrics struct {
	// ingestTotal counts uploads by outcome
	ingestTotal *prometheus.CounterVec
	// queryTotal counts answered questions by outcome
	queryTotal *prometheus.CounterVec
	// queryDurationSeconds covers retrieval plus completion
	queryDurationSeconds prometheus.Histogram
	// indexedChunks is the chunk count of the active document
	indexedChunks prometheus.Gauge
	// httpRequestsTotal is partitioned by handler, method and status code
	httpRequestsTotal *prometheus.CounterVec
}

// newServerMetrics registers into reg rather than the global default so
// tests can use a fresh registry per server.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "ingest_total",
			Help:      "Total number of document uploads, partitioned by outcome.",
		}, []string{"outcome"}),

		queryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "query_total",
			Help:      "Total number of questions asked, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "query_duration_seconds",
			Help:      "Time to retrieve context and generate an answer.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),

		indexedChunks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragchat",
			Name:      "indexed_chunks",
			Help:      "Number of chunks in the vector index for the active document.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests, partitioned by handler, method and status code.",
		}, []string{labelHandler, "code", "method"}),
	}
}

// instrument counts requests served by h under the given handler label
func (m *serverMetrics) instrument(name string, h http.HandlerFunc) http.Handler {
	return promhttp.InstrumentHandlerCounter(
		m.httpRequestsTotal.MustCurryWith(prometheus.Labels{labelHandler: name}), h)
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}
