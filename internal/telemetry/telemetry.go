// Package telemetry holds the service's OpenTelemetry instruments.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "inpatient-hub"

// Metrics groups the counters recorded by the service layer.
type Metrics struct {
	validations metric.Int64Counter
	logins      metric.Int64Counter
	denials     metric.Int64Counter
}

// NewMetrics creates the instruments on mp. A nil provider uses the global
// one, which is a no-op until an SDK is installed.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)

	validations, err := meter.Int64Counter("inpatient_hub.workflow.validations",
		metric.WithDescription("Workflow validations by outcome"),
	)
	if err != nil {
		return nil, err
	}
	logins, err := meter.Int64Counter("inpatient_hub.auth.logins",
		metric.WithDescription("Successful sign-ins by role"),
	)
	if err != nil {
		return nil, err
	}
	denials, err := meter.Int64Counter("inpatient_hub.access.denials",
		metric.WithDescription("Requests refused by feature or role checks"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		validations: validations,
		logins:      logins,
		denials:     denials,
	}, nil
}

// Noop returns Metrics backed by the global provider, ignoring errors.
func Noop() *Metrics {
	m, err := NewMetrics(nil)
	if err != nil {
		return &Metrics{}
	}
	return m
}

func (m *Metrics) Validation(ctx context.Context, valid bool) {
	if m == nil || m.validations == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
}

func (m *Metrics) Login(ctx context.Context, role string) {
	if m == nil || m.logins == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

func (m *Metrics) Denial(ctx context.Context, reason string) {
	if m == nil || m.denials == nil {
		return
	}
	m.denials.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
