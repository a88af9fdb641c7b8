package sink

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/torosent/loadsink/internal/stats"
	"github.com/torosent/loadsink/internal/tags"
)

// Label keys attached to ad-hoc realtime metrics in addition to the custom
// tags. The metric's value is carried both as the measurement and as a
// label; downstream consumers of the original sink rely on that duplication.
const (
	keyMetricName = "metric_name"
	keyUnit       = "unit"
	keyValue      = "value"
)

// Start emits the one-time node topology gauges. Only identity and custom
// tags are attached; there is no scenario or step context at test start.
func (s *Sink) Start(ctx context.Context, info stats.SessionInfo) error {
	if err := s.ready(); err != nil {
		return err
	}
	opts := metric.WithAttributes(s.builder.Base()...)
	s.inst.nodeCount.Record(ctx, info.NodeCount, opts)
	s.inst.nodeCPUCount.Record(ctx, info.CPUCount, opts)
	return nil
}

// SaveRealtimeStats maps one periodic snapshot of per-scenario statistics
// onto the instrument set.
func (s *Sink) SaveRealtimeStats(ctx context.Context, scenarios []stats.ScenarioStats) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, sc := range scenarios {
		s.recordScenario(ctx, sc)
	}
	return nil
}

// SaveFinalStats unwraps the node-level result down to its scenario array
// and maps it exactly like a realtime snapshot.
func (s *Sink) SaveFinalStats(ctx context.Context, node stats.NodeStats) error {
	return s.SaveRealtimeStats(ctx, node.Scenarios)
}

// recordScenario dispatches on granularity: a scenario without step
// breakdowns is recorded once at scenario grain; otherwise each step is
// recorded independently and the scenario's own bundle is not emitted.
func (s *Sink) recordScenario(ctx context.Context, sc stats.ScenarioStats) {
	if len(sc.Steps) == 0 {
		s.recordBundle(ctx, s.builder.ForScenario(sc.ScenarioName), sc.TargetUsers, sc.Bundle)
		return
	}
	for _, step := range sc.Steps {
		s.recordBundle(ctx, s.builder.ForStep(sc.ScenarioName, step.StepName), sc.TargetUsers, step.Bundle)
	}
}

func (s *Sink) recordBundle(ctx context.Context, kvs []attribute.KeyValue, users int64, b stats.MeasurementBundle) {
	opts := metric.WithAttributes(kvs...)

	s.inst.usersCount.Record(ctx, users, opts)

	s.inst.rpsTotal.Record(ctx, b.OK.Request.RPS+b.Failed.Request.RPS, opts)
	s.inst.rpsSuccess.Record(ctx, b.OK.Request.RPS, opts)
	s.inst.rpsFail.Record(ctx, b.Failed.Request.RPS, opts)

	s.inst.requestsTotal.Add(ctx, b.OK.Request.Count+b.Failed.Request.Count, opts)
	s.inst.requestsSuccess.Add(ctx, b.OK.Request.Count, opts)
	s.inst.requestsFail.Add(ctx, b.Failed.Request.Count, opts)

	recordLatency(ctx, s.inst.latencySuccess, b.OK.Latency, opts)
	recordLatency(ctx, s.inst.latencyFail, b.Failed.Latency, opts)
}

// recordLatency records the four percentiles as four discrete histogram
// observations, in p50, p75, p95, p99 order. This reproduces point samples
// of an already-aggregated distribution rather than the distribution itself;
// dashboards built against the original sink expect exactly this shape, so
// it must not be collapsed into a single weighted recording.
func recordLatency(ctx context.Context, hist metric.Float64Histogram, lat stats.LatencyStats, opts metric.RecordOption) {
	hist.Record(ctx, lat.P50, opts)
	hist.Record(ctx, lat.P75, opts)
	hist.Record(ctx, lat.P95, opts)
	hist.Record(ctx, lat.P99, opts)
}

// SaveRealtimeMetrics maps ad-hoc counters and gauges reported mid-test
// outside the periodic scenario-stats cadence.
func (s *Sink) SaveRealtimeMetrics(ctx context.Context, snap stats.MetricSnapshot) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, c := range snap.Counters {
		opts := metric.WithAttributes(s.adHocLabels(c.ScenarioName, c.MetricName, c.Unit, c.Value)...)
		s.inst.customCounter.Add(ctx, c.Value, opts)
	}
	for _, g := range snap.Gauges {
		opts := metric.WithAttributes(s.adHocLabels(g.ScenarioName, g.MetricName, g.Unit, g.Value)...)
		s.inst.customGauge.Record(ctx, g.Value, opts)
	}
	return nil
}

func (s *Sink) adHocLabels(scenario, name, unit string, value float64) []attribute.KeyValue {
	return append(s.builder.Custom(),
		attribute.String(tags.KeyScenarioName, scenario),
		attribute.String(keyMetricName, name),
		attribute.String(keyUnit, unit),
		attribute.Float64(keyValue, value),
	)
}
