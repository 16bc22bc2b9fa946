// Package telemetry is the ambient metrics registry and its HTTP
// exposition (spec.md's Non-goals exclude "Prometheus exporter wiring at
// the binary level", but the registry and /metrics/ /healthz mux are
// carried regardless, per SPEC_FULL.md's ambient-stack rule). Grounded on
// the teacher's metrics package conventions (counter/histogram-per-stage
// naming) and ethpandaops-erigone's go-chi/chi + go-chi/cors HTTP mux.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram BlockPipeline's suspension points
// tap (spec.md §5 "Suspension points: only I/O boundaries suspend").
type Metrics struct {
	BlocksProcessed   *prometheus.CounterVec
	BlockStageSeconds *prometheus.HistogramVec
	FailedBlocks      *prometheus.CounterVec
	TraceFetchSeconds prometheus.Histogram
	StoreOpSeconds    *prometheus.HistogramVec
	PendingBlocks     prometheus.Gauge
}

// New registers every metric against a fresh registry (not the global
// default one), so multiple Metrics instances — e.g. one per test — never
// collide on a duplicate-registration panic. The registry is returned
// alongside so NewServer can expose it.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return newWith(reg), reg
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlocksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brontes_blocks_processed_total",
			Help: "Blocks that reached PERSISTED, labeled by outcome.",
		}, []string{"outcome"}),
		BlockStageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brontes_block_stage_seconds",
			Help:    "Wall time spent in each BlockPipeline FSM stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		FailedBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brontes_failed_blocks_total",
			Help: "Blocks recorded in failed_blocks, labeled by stage.",
		}, []string{"stage"}),
		TraceFetchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "brontes_trace_fetch_seconds",
			Help:    "TraceProvider.replay_block_transactions latency.",
			Buckets: prometheus.DefBuckets,
		}),
		StoreOpSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brontes_store_op_seconds",
			Help:    "Store read/write latency, labeled by op.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		PendingBlocks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "brontes_pending_blocks",
			Help: "Blocks currently occupying a pipeline slot (<= MAX_PENDING).",
		}),
	}
}

// ObserveStage is a small helper for `defer m.ObserveStage("COLLECTING", time.Now())`
// call sites in pipeline/pipeline.go.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.BlockStageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Server is the /metrics + /healthz HTTP exposition, separate from any
// RPC surface (spec.md's Non-goals exclude an RPC server; this is
// observability-only).
type Server struct {
	httpServer *http.Server
}

// NewServer builds the chi mux: CORS-wrapped /metrics (promhttp handler
// over reg) and a liveness-only /healthz.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{httpServer: &http.Server{Addr: addr, Handler: r}}
}

func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }
