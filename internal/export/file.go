package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// errShutdown is returned by Export after the exporter has been shut down.
var errShutdown = errors.New("file exporter is shut down")

// Lock acquisition is bounded so a wedged holder on another node cannot
// stall the periodic reader; past the deadline the block is appended
// without the lock.
const (
	lockTimeout    = 500 * time.Millisecond
	lockRetryDelay = 50 * time.Millisecond
)

// FileExporter appends metric snapshots to a file as human-readable text:
// one UTC-timestamped block per export cycle, one line per data point. The
// output is meant for inspection and debugging, not for re-ingestion.
//
// Appends within one process are serialized by the exporter's own mutex; the
// periodic reader is the only expected caller. Across processes the target
// file is guarded by an advisory flock so blocks from concurrent test nodes
// interleave at block granularity.
type FileExporter struct {
	path string

	mu      sync.Mutex
	stopped bool
}

var _ sdkmetric.Exporter = (*FileExporter)(nil)

// NewFileExporter creates an exporter appending to the given path. The file
// is created on first export if it does not exist.
func NewFileExporter(path string) *FileExporter {
	return &FileExporter{path: path}
}

// Temporality reports delta temporality so each block carries only the
// cycle's own measurements.
func (e *FileExporter) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.DeltaTemporality
}

// Aggregation returns the default aggregation for the instrument kind.
func (e *FileExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

// Export serializes one metric snapshot and appends it to the file. Any
// failure is logged to stderr and returned to the reader; it never panics
// and never aborts the surrounding test run. A failure can leave a partial
// block behind; writes are best effort, not transactional.
func (e *FileExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("file export: %v", r)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "[loadsink] file export failed: %v\n", err)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errShutdown
	}

	lock := flock.New(e.path)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	locked, _ := lock.TryLockContext(lockCtx, lockRetryDelay)
	cancel()
	if locked {
		defer func() { _ = lock.Unlock() }()
	}

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	defer f.Close()

	var sb strings.Builder
	renderBlock(&sb, rm, time.Now().UTC())
	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("append %s: %w", e.path, err)
	}
	return nil
}

// ForceFlush is a no-op; every export is written synchronously.
func (e *FileExporter) ForceFlush(context.Context) error {
	return nil
}

// Shutdown marks the exporter stopped. Safe to call multiple times.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}

func renderBlock(sb *strings.Builder, rm *metricdata.ResourceMetrics, at time.Time) {
	fmt.Fprintf(sb, "--- %s ---\n", at.Format(time.RFC3339))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			renderMetric(sb, m)
		}
	}
	fmt.Fprintln(sb)
}

func renderMetric(sb *strings.Builder, m metricdata.Metrics) {
	if m.Description != "" {
		fmt.Fprintf(sb, "%s: %s\n", m.Name, m.Description)
	} else {
		fmt.Fprintf(sb, "%s\n", m.Name)
	}

	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			fmt.Fprintf(sb, "  sum=%d %s\n", dp.Value, renderAttributes(dp.Attributes))
		}
	case metricdata.Sum[float64]:
		for _, dp := range data.DataPoints {
			fmt.Fprintf(sb, "  sum=%s %s\n", formatFloat(dp.Value), renderAttributes(dp.Attributes))
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			fmt.Fprintf(sb, "  value=%d %s\n", dp.Value, renderAttributes(dp.Attributes))
		}
	case metricdata.Gauge[float64]:
		for _, dp := range data.DataPoints {
			fmt.Fprintf(sb, "  value=%s %s\n", formatFloat(dp.Value), renderAttributes(dp.Attributes))
		}
	case metricdata.Histogram[int64]:
		for _, dp := range data.DataPoints {
			fmt.Fprintf(sb, "  count=%d sum=%d %s\n", dp.Count, dp.Sum, renderAttributes(dp.Attributes))
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			fmt.Fprintf(sb, "  count=%d sum=%s %s\n", dp.Count, formatFloat(dp.Sum), renderAttributes(dp.Attributes))
		}
	default:
		fmt.Fprintf(sb, "  (unsupported aggregation %T)\n", m.Data)
	}
}

// renderAttributes writes the label set as key=value pairs. attribute.Set
// iterates in sorted key order.
func renderAttributes(set attribute.Set) string {
	if set.Len() == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	iter := set.Iter()
	first := true
	for iter.Next() {
		kv := iter.Attribute()
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s=%s", string(kv.Key), kv.Value.Emit())
	}
	sb.WriteByte('}')
	return sb.String()
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
