// Package stats defines the load-test statistics model consumed by the
// reporting sink and a collector that aggregates raw request outcomes
// into per-scenario and per-step snapshots.
package stats

// RequestStats holds the request count and throughput for one outcome class.
type RequestStats struct {
	Count int64
	RPS   float64
}

// LatencyStats holds latency percentiles in milliseconds.
type LatencyStats struct {
	P50 float64
	P75 float64
	P95 float64
	P99 float64
}

// OutcomeStats combines request and latency statistics for one outcome class.
type OutcomeStats struct {
	Request RequestStats
	Latency LatencyStats
}

// MeasurementBundle pairs succeeded and failed outcome statistics.
type MeasurementBundle struct {
	OK     OutcomeStats
	Failed OutcomeStats
}

// StepStats reports one step's measurement bundle within a scenario.
type StepStats struct {
	StepName string
	Bundle   MeasurementBundle
}

// ScenarioStats reports a scenario's statistics. A scenario either carries
// its own bundle (no step breakdown) or one StepStats per step, in which
// case consumers record at step granularity only.
type ScenarioStats struct {
	ScenarioName string
	TargetUsers  int64
	Bundle       MeasurementBundle
	Steps        []StepStats
}

// NodeStats wraps the final per-scenario results of a whole test node.
type NodeStats struct {
	Scenarios []ScenarioStats
}

// SessionInfo describes the node topology reported once at test start.
type SessionInfo struct {
	NodeCount int64
	CPUCount  int64
}

// Counter is an ad-hoc running-total metric reported mid-test outside the
// periodic scenario-stats cadence.
type Counter struct {
	ScenarioName string
	MetricName   string
	Unit         string
	Value        float64
}

// Gauge is an ad-hoc point-in-time metric reported mid-test.
type Gauge struct {
	ScenarioName string
	MetricName   string
	Unit         string
	Value        float64
}

// MetricSnapshot groups the ad-hoc metrics reported in one realtime batch.
type MetricSnapshot struct {
	Counters []Counter
	Gauges   []Gauge
}
