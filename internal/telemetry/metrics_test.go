package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Collect sum of counter data points matching the attribute (or all if attr is empty)
func collect(t *testing.T, reader *sdkmetric.ManualReader, name string, attr attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s must be int64 sum", name)
			for _, dp := range sum.DataPoints {
				if attr.Key == "" {
					total += dp.Value
					continue
				}
				if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(provider.Meter("authkeeper-test"))
	require.NoError(t, err)

	m.Login(t.Context(), true)
	m.Login(t.Context(), false)
	m.Login(t.Context(), false)
	m.TokenIssued(t.Context(), "access")
	m.DenylistFailure(t.Context())
	m.EventDropped(t.Context(), "REGISTER_TOP")

	require.EqualValues(t, 1, collect(t, reader, "authkeeper.logins", attribute.String("result", ResultSuccess)))
	require.EqualValues(t, 2, collect(t, reader, "authkeeper.logins", attribute.String("result", ResultFailure)))
	require.EqualValues(t, 1, collect(t, reader, "authkeeper.tokens.issued", attribute.String("kind", "access")))
	require.EqualValues(t, 1, collect(t, reader, "authkeeper.denylist.failures", attribute.KeyValue{}))
	require.EqualValues(t, 1, collect(t, reader, "authkeeper.events.dropped", attribute.KeyValue{}))
}

func TestNewNoop(t *testing.T) {
	m := NewNoop()
	require.NotNil(t, m)

	require.NotPanics(t, func() {
		m.Login(t.Context(), true)
		m.DenylistFailure(t.Context())
	})
}
