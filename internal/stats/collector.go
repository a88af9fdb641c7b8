package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector aggregates per-request outcomes into scenario and step
// statistics in a thread-safe manner.
type Collector struct {
	mu        sync.Mutex
	scenarios map[string]*scenarioState
	order     []string
	start     time.Time
}

type scenarioState struct {
	targetUsers int64
	total       *outcomeState
	steps       map[string]*outcomeState
	stepOrder   []string
}

type outcomeState struct {
	ok   *bucket
	fail *bucket
}

type bucket struct {
	hist  *hdrhistogram.Histogram
	count int64
}

func newBucket() *bucket {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &bucket{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

func newOutcomeState() *outcomeState {
	return &outcomeState{ok: newBucket(), fail: newBucket()}
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		scenarios: make(map[string]*scenarioState),
		start:     time.Now(),
	}
}

// Start resets the collector's clock to now, so RPS reflects the time since
// the test actually began rather than collector construction.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// SetTargetUsers records the load simulation's current target user count
// for a scenario.
func (c *Collector) SetTargetUsers(scenario string, users int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenario(scenario).targetUsers = users
}

// Record adds one request outcome. Step may be empty for scenarios that
// report at scenario granularity only.
func (c *Collector) Record(scenario, step string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.scenario(scenario)
	st.total.record(latency, err)
	if step == "" {
		return
	}
	so, ok := st.steps[step]
	if !ok {
		so = newOutcomeState()
		st.steps[step] = so
		st.stepOrder = append(st.stepOrder, step)
	}
	so.record(latency, err)
}

// Snapshot returns the current per-scenario statistics in recording order.
// Elapsed zero means "since Start".
func (c *Collector) Snapshot(elapsed time.Duration) []ScenarioStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed <= 0 {
		elapsed = time.Since(c.start)
	}

	out := make([]ScenarioStats, 0, len(c.order))
	for _, name := range c.order {
		st := c.scenarios[name]
		sc := ScenarioStats{
			ScenarioName: name,
			TargetUsers:  st.targetUsers,
			Bundle:       st.total.bundle(elapsed),
		}
		for _, stepName := range st.stepOrder {
			sc.Steps = append(sc.Steps, StepStats{
				StepName: stepName,
				Bundle:   st.steps[stepName].bundle(elapsed),
			})
		}
		out = append(out, sc)
	}
	return out
}

func (c *Collector) scenario(name string) *scenarioState {
	st, ok := c.scenarios[name]
	if !ok {
		st = &scenarioState{
			total: newOutcomeState(),
			steps: make(map[string]*outcomeState),
		}
		c.scenarios[name] = st
		c.order = append(c.order, name)
	}
	return st
}

func (o *outcomeState) record(latency time.Duration, err error) {
	b := o.ok
	if err != nil {
		b = o.fail
	}
	b.count++
	if latency > 0 {
		us := latency.Microseconds()
		if us < b.hist.LowestTrackableValue() {
			us = b.hist.LowestTrackableValue()
		}
		if us > b.hist.HighestTrackableValue() {
			us = b.hist.HighestTrackableValue()
		}
		_ = b.hist.RecordValue(us)
	}
}

func (o *outcomeState) bundle(elapsed time.Duration) MeasurementBundle {
	return MeasurementBundle{
		OK:     o.ok.stats(elapsed),
		Failed: o.fail.stats(elapsed),
	}
}

func (b *bucket) stats(elapsed time.Duration) OutcomeStats {
	s := OutcomeStats{Request: RequestStats{Count: b.count}}
	if elapsed > 0 && b.count > 0 {
		s.Request.RPS = float64(b.count) / elapsed.Seconds()
	}
	if b.hist.TotalCount() > 0 {
		s.Latency = LatencyStats{
			P50: float64(b.hist.ValueAtQuantile(50)) / 1000,
			P75: float64(b.hist.ValueAtQuantile(75)) / 1000,
			P95: float64(b.hist.ValueAtQuantile(95)) / 1000,
			P99: float64(b.hist.ValueAtQuantile(99)) / 1000,
		}
	}
	return s
}
