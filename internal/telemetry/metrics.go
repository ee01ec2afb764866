package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const MeterName = "github.com/nkiryanov/authkeeper"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds service counters
type Metrics struct {
	logins           metric.Int64Counter
	tokensIssued     metric.Int64Counter
	denylistFailures metric.Int64Counter
	eventsDropped    metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.logins, "authkeeper.logins", "Login attempts by result"},
		{&m.tokensIssued, "authkeeper.tokens.issued", "Issued bearer tokens by kind"},
		{&m.denylistFailures, "authkeeper.denylist.failures", "Denylist store failures"},
		{&m.eventsDropped, "authkeeper.events.dropped", "Events dropped by dispatcher"},
	}
	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("error while creating counter %s. Err: %w", c.name, err)
		}
	}

	return &m, nil
}

// Metrics that go nowhere
func NewNoop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter(MeterName))
	return m
}

func (m *Metrics) Login(ctx context.Context, success bool) {
	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) TokenIssued(ctx context.Context, kind string) {
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) DenylistFailure(ctx context.Context) {
	m.denylistFailures.Add(ctx, 1)
}

func (m *Metrics) EventDropped(ctx context.Context, topic string) {
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}
