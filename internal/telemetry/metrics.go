package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// MetricsObserver records builder activity as OpenTelemetry counters.
//
// It implements api.Observer and is usually combined with a LoggingObserver
// through api.NewCompositeObserver.
type MetricsObserver struct {
	applied     metric.Int64Counter
	ignored     metric.Int64Counter
	diagnostics metric.Int64Counter
	transitions metric.Int64Counter
	rebuilds    metric.Int64Counter
	rebuildSize metric.Int64Histogram
}

var _ api.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates the fluxotrace instruments on meter.
func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	var (
		m   MetricsObserver
		err error
	)

	if m.applied, err = meter.Int64Counter("fluxotrace.events.applied",
		metric.WithDescription("History events accepted by a timeline builder."),
		metric.WithUnit("{event}")); err != nil {
		return nil, fmt.Errorf("telemetry: events.applied: %w", err)
	}
	if m.ignored, err = meter.Int64Counter("fluxotrace.events.ignored",
		metric.WithDescription("History events dropped before folding."),
		metric.WithUnit("{event}")); err != nil {
		return nil, fmt.Errorf("telemetry: events.ignored: %w", err)
	}
	if m.diagnostics, err = meter.Int64Counter("fluxotrace.diagnostics",
		metric.WithDescription("Anomalies recorded while folding history."),
		metric.WithUnit("{diagnostic}")); err != nil {
		return nil, fmt.Errorf("telemetry: diagnostics: %w", err)
	}
	if m.transitions, err = meter.Int64Counter("fluxotrace.step.transitions",
		metric.WithDescription("Step state changes."),
		metric.WithUnit("{transition}")); err != nil {
		return nil, fmt.Errorf("telemetry: step.transitions: %w", err)
	}
	if m.rebuilds, err = meter.Int64Counter("fluxotrace.rebuilds",
		metric.WithDescription("Full refolds caused by late events."),
		metric.WithUnit("{rebuild}")); err != nil {
		return nil, fmt.Errorf("telemetry: rebuilds: %w", err)
	}
	if m.rebuildSize, err = meter.Int64Histogram("fluxotrace.rebuild.events",
		metric.WithDescription("History length refolded per rebuild."),
		metric.WithUnit("{event}")); err != nil {
		return nil, fmt.Errorf("telemetry: rebuild.events: %w", err)
	}
	return &m, nil
}

func (m *MetricsObserver) OnEventApplied(ev api.RawEvent) {
	m.applied.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(ev.Kind))))
}

func (m *MetricsObserver) OnEventIgnored(ev api.RawEvent, reason api.IgnoreReason) {
	m.ignored.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *MetricsObserver) OnDiagnostic(d api.Diagnostic) {
	m.diagnostics.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("code", string(d.Code))))
}

func (m *MetricsObserver) OnStepTransition(groupID, stepName string, from, to api.StepState) {
	m.transitions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("to", string(to))))
}

func (m *MetricsObserver) OnRebuild(events int) {
	ctx := context.Background()
	m.rebuilds.Add(ctx, 1)
	m.rebuildSize.Record(ctx, int64(events))
}
