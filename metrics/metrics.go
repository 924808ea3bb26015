// Package metrics holds the Prometheus collectors of the registry and the
// server that exposes them.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OperationGetPreviousKey = "get_previous_key"
	OperationSetCurrentKey  = "set_current_key"

	OutcomeFound          = "found"
	OutcomeAbsent         = "absent"
	OutcomeUpdated        = "updated"
	OutcomeMissingOrigin  = "missing_origin"
	OutcomeStorageFailure = "storage_failure"
	OutcomeCorruptRecord  = "corrupt_record"
	OutcomeError          = "error"
)

// RegistryMetrics counts registry operations by outcome.
// A nil *RegistryMetrics is valid and records nothing.
type RegistryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRegistryMetrics registers the registry collectors on reg.
func NewRegistryMetrics(namespace string, reg prometheus.Registerer) *RegistryMetrics {
	factory := promauto.With(reg)
	return &RegistryMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Registry operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of registry operations including the storage round trip",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveOperation records one completed operation.
func (m *RegistryMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// MetricsServer serves /metrics from a private registry.
type MetricsServer struct {
	registry  *prometheus.Registry
	namespace string
	srv       *http.Server
}

// New creates a metrics server for addr. Metric names are prefixed with a
// sanitized form of namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry:  registry,
		namespace: sanitizeNamespace(namespace),
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Registerer returns the private registry for additional collectors.
func (m *MetricsServer) Registerer() prometheus.Registerer {
	return m.registry
}

// Gatherer returns the private registry for inspection.
func (m *MetricsServer) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Namespace returns the metric name prefix.
func (m *MetricsServer) Namespace() string {
	return m.namespace
}

// Handler returns the http handler serving /metrics.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

func sanitizeNamespace(namespace string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, namespace)
}
