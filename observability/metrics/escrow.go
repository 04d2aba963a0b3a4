package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// EscrowMetrics records escrow activity twice: as Prometheus collectors that
// can be pushed to a gateway, and as OpenTelemetry instruments carried by the
// configured OTLP exporter.
type EscrowMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	openEscrow prometheus.Gauge
	custodied  *prometheus.GaugeVec
	gatherer   prometheus.Gatherer

	otelOps     metric.Int64Counter
	otelLatency metric.Float64Histogram
	otelOpen    metric.Int64Gauge
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the escrow metrics registered with the default Prometheus
// registry and instrumented through the global meter provider.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = newEscrowMetrics(otel.Meter("escrow"))
		prometheus.MustRegister(escrowRegistry.collectors()...)
		escrowRegistry.gatherer = prometheus.DefaultGatherer
	})
	return escrowRegistry
}

func newEscrowMetrics(meter metric.Meter) *EscrowMetrics {
	m := &EscrowMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_operations_total",
			Help: "Count of escrow operations by operation and result kind.",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escrow_operation_duration_seconds",
			Help:    "Latency distribution of escrow operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		openEscrow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escrow_custody_open",
			Help: "Number of escrow records open in the ledger.",
		}),
		custodied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "escrow_custodied_amount",
			Help: "Units of asset A held in custody by open escrows, by asset.",
		}, []string{"asset"}),
	}

	var err error
	if m.otelOps, err = meter.Int64Counter("escrow.operations",
		metric.WithDescription("Escrow operations by operation and result kind.")); err != nil {
		m.otelOps = noop.Int64Counter{}
	}
	if m.otelLatency, err = meter.Float64Histogram("escrow.operation.duration",
		metric.WithDescription("Latency of escrow operations."),
		metric.WithUnit("s")); err != nil {
		m.otelLatency = noop.Float64Histogram{}
	}
	if m.otelOpen, err = meter.Int64Gauge("escrow.custody.open",
		metric.WithDescription("Escrow records open in the ledger.")); err != nil {
		m.otelOpen = noop.Int64Gauge{}
	}
	return m
}

func (m *EscrowMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.latency, m.openEscrow, m.custodied}
}

// ObserveOperation records the outcome and duration of one escrow operation.
func (m *EscrowMetrics) ObserveOperation(ctx context.Context, op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = "unknown"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())

	m.otelOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result)))
	m.otelLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}

// SetOutstanding replaces the open-escrow gauges with totals read from the
// ledger, keyed by asset.
func (m *EscrowMetrics) SetOutstanding(ctx context.Context, open int, custodied map[string]uint64) {
	if m == nil {
		return
	}
	m.openEscrow.Set(float64(open))
	m.custodied.Reset()
	for asset, amount := range custodied {
		m.custodied.WithLabelValues(asset).Set(float64(amount))
	}
	m.otelOpen.Record(ctx, int64(open))
}

// Push sends the gathered Prometheus metrics to the push gateway at url under
// job. One-shot processes call it before exiting.
func (m *EscrowMetrics) Push(ctx context.Context, url, job string) error {
	if m == nil || m.gatherer == nil {
		return nil
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
