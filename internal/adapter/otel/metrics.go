package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "guildkit"

// Metrics holds all guildkit metric instruments.
type Metrics struct {
	Dispatches       metric.Int64Counter
	DispatchFailures metric.Int64Counter
	DispatchDuration metric.Float64Histogram
	EventsFanned     metric.Int64Counter
	HandlerFailures  metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Dispatches, err = meter.Int64Counter("guildkit.dispatch.total",
		metric.WithDescription("Number of command invocations dispatched"))
	if err != nil {
		return nil, err
	}

	m.DispatchFailures, err = meter.Int64Counter("guildkit.dispatch.failures",
		metric.WithDescription("Number of command invocations that failed"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("guildkit.dispatch.duration_seconds",
		metric.WithDescription("Command dispatch duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.EventsFanned, err = meter.Int64Counter("guildkit.events.fanned",
		metric.WithDescription("Number of platform events fanned out to capabilities"))
	if err != nil {
		return nil, err
	}

	m.HandlerFailures, err = meter.Int64Counter("guildkit.events.handler_failures",
		metric.WithDescription("Number of capability event handlers that failed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
