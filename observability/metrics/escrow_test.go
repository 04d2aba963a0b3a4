package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*EscrowMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m := newEscrowMetrics(provider.Meter("escrow"))
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.gatherer = reg
	return m, reader
}

func TestEscrowMetricsCountsOperations(t *testing.T) {
	m, _ := newTestMetrics(t)
	ctx := context.Background()
	m.ObserveOperation(ctx, "open", "ok", time.Millisecond)
	m.ObserveOperation(ctx, "open", "ok", time.Millisecond)
	m.ObserveOperation(ctx, "fulfill", "address_mismatch", time.Millisecond)
	m.ObserveOperation(ctx, "", "", 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("open", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("fulfill", "address_mismatch")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("unknown", "unknown")))
}

func TestEscrowMetricsOutstandingReplacesGauges(t *testing.T) {
	m, _ := newTestMetrics(t)
	ctx := context.Background()
	m.SetOutstanding(ctx, 2, map[string]uint64{"mintA": 500, "mintB": 250})
	m.SetOutstanding(ctx, 1, map[string]uint64{"mintA": 250})

	require.Equal(t, 1.0, testutil.ToFloat64(m.openEscrow))
	require.Equal(t, 250.0, testutil.ToFloat64(m.custodied.WithLabelValues("mintA")))
	require.Equal(t, 1, testutil.CollectAndCount(m.custodied), "assets without open escrows are dropped")

	m.SetOutstanding(ctx, 0, nil)
	require.Equal(t, 0.0, testutil.ToFloat64(m.openEscrow))
}

func TestEscrowMetricsExportThroughMeter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.ObserveOperation(ctx, "open", "ok", time.Millisecond)
	m.SetOutstanding(ctx, 3, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			names[md.Name] = true
		}
	}
	require.True(t, names["escrow.operations"])
	require.True(t, names["escrow.operation.duration"])
	require.True(t, names["escrow.custody.open"])
}

func TestEscrowMetricsPush(t *testing.T) {
	var (
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, _ := newTestMetrics(t)
	m.ObserveOperation(context.Background(), "cancel", "ok", time.Millisecond)
	require.NoError(t, m.Push(context.Background(), srv.URL, "escrowctl"))
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/escrowctl", path)
	require.Contains(t, string(body), "escrow_operations_total")

	require.NoError(t, m.Push(context.Background(), "  ", "escrowctl"), "no gateway configured")
}

func TestNilEscrowMetricsIsNoop(t *testing.T) {
	var m *EscrowMetrics
	ctx := context.Background()
	m.ObserveOperation(ctx, "open", "ok", time.Second)
	m.SetOutstanding(ctx, 1, map[string]uint64{"mintA": 1})
	require.NoError(t, m.Push(ctx, "http://127.0.0.1:1", "escrowctl"))
}
