package sink

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Instrument names are stable identifiers: dashboards filter on them, so
// they must not change across versions.
const (
	instUsersCount      = "loadtest.users.count"
	instNodeCount       = "loadtest.node.count"
	instNodeCPUCount    = "loadtest.node.cpu.count"
	instRequestsTotal   = "loadtest.requests.total"
	instRequestsSuccess = "loadtest.requests.success"
	instRequestsFail    = "loadtest.requests.fail"
	instRPSTotal        = "loadtest.rps.total"
	instRPSSuccess      = "loadtest.rps.success"
	instRPSFail         = "loadtest.rps.fail"
	instLatencySuccess  = "loadtest.latency.success"
	instLatencyFail     = "loadtest.latency.fail"
	instCustomCounter   = "loadtest.custom.counter"
	instCustomGauge     = "loadtest.custom.gauge"
)

// instruments is the fixed instrument set, created once at Init and shared
// read-only afterwards.
type instruments struct {
	usersCount   metric.Int64Gauge
	nodeCount    metric.Int64Gauge
	nodeCPUCount metric.Int64Gauge

	requestsTotal   metric.Int64Counter
	requestsSuccess metric.Int64Counter
	requestsFail    metric.Int64Counter

	rpsTotal   metric.Float64Gauge
	rpsSuccess metric.Float64Gauge
	rpsFail    metric.Float64Gauge

	latencySuccess metric.Float64Histogram
	latencyFail    metric.Float64Histogram

	customCounter metric.Float64Counter
	customGauge   metric.Float64Gauge
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var inst instruments
	var err error

	if inst.usersCount, err = meter.Int64Gauge(instUsersCount,
		metric.WithDescription("Target number of simulated users")); err != nil {
		return nil, fmt.Errorf("%s: %w", instUsersCount, err)
	}
	if inst.nodeCount, err = meter.Int64Gauge(instNodeCount,
		metric.WithDescription("Number of load-generator nodes in the session")); err != nil {
		return nil, fmt.Errorf("%s: %w", instNodeCount, err)
	}
	if inst.nodeCPUCount, err = meter.Int64Gauge(instNodeCPUCount,
		metric.WithDescription("CPU count of the reporting node")); err != nil {
		return nil, fmt.Errorf("%s: %w", instNodeCPUCount, err)
	}

	if inst.requestsTotal, err = meter.Int64Counter(instRequestsTotal,
		metric.WithDescription("Total number of requests")); err != nil {
		return nil, fmt.Errorf("%s: %w", instRequestsTotal, err)
	}
	if inst.requestsSuccess, err = meter.Int64Counter(instRequestsSuccess,
		metric.WithDescription("Number of succeeded requests")); err != nil {
		return nil, fmt.Errorf("%s: %w", instRequestsSuccess, err)
	}
	if inst.requestsFail, err = meter.Int64Counter(instRequestsFail,
		metric.WithDescription("Number of failed requests")); err != nil {
		return nil, fmt.Errorf("%s: %w", instRequestsFail, err)
	}

	if inst.rpsTotal, err = meter.Float64Gauge(instRPSTotal,
		metric.WithDescription("Total requests per second")); err != nil {
		return nil, fmt.Errorf("%s: %w", instRPSTotal, err)
	}
	if inst.rpsSuccess, err = meter.Float64Gauge(instRPSSuccess,
		metric.WithDescription("Succeeded requests per second")); err != nil {
		return nil, fmt.Errorf("%s: %w", instRPSSuccess, err)
	}
	if inst.rpsFail, err = meter.Float64Gauge(instRPSFail,
		metric.WithDescription("Failed requests per second")); err != nil {
		return nil, fmt.Errorf("%s: %w", instRPSFail, err)
	}

	if inst.latencySuccess, err = meter.Float64Histogram(instLatencySuccess,
		metric.WithDescription("Latency percentiles of succeeded requests"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("%s: %w", instLatencySuccess, err)
	}
	if inst.latencyFail, err = meter.Float64Histogram(instLatencyFail,
		metric.WithDescription("Latency percentiles of failed requests"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("%s: %w", instLatencyFail, err)
	}

	if inst.customCounter, err = meter.Float64Counter(instCustomCounter,
		metric.WithDescription("Running total of user-reported counters")); err != nil {
		return nil, fmt.Errorf("%s: %w", instCustomCounter, err)
	}
	if inst.customGauge, err = meter.Float64Gauge(instCustomGauge,
		metric.WithDescription("Last value of user-reported gauges")); err != nil {
		return nil, fmt.Errorf("%s: %w", instCustomGauge, err)
	}

	return &inst, nil
}
