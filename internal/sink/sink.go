// Package sink implements the reporting sink: lifecycle hooks invoked by a
// load-testing framework that translate scenario and step statistics into
// OpenTelemetry metric instrument updates and push them through a single
// configured export backend.
//
// Hooks are invoked sequentially by the host framework: Init, Start, then
// repeated SaveRealtimeStats/SaveRealtimeMetrics calls, SaveFinalStats, and
// finally Stop. The sink spawns no goroutines of its own; the only internal
// timer belongs to the SDK's periodic reader.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/torosent/loadsink/internal/config"
	"github.com/torosent/loadsink/internal/export"
	"github.com/torosent/loadsink/internal/tags"
)

// scopeName identifies the sink's instrumentation scope.
const scopeName = "github.com/torosent/loadsink"

// ErrNotInitialized indicates a lifecycle hook ran before Init, so no
// identity or instrument registry exists yet. This is a host-framework
// ordering bug and is not recoverable locally.
var ErrNotInitialized = errors.New("sink is not initialized: Init must run first")

// Sink forwards load-test statistics to an observability backend. The zero
// value is unusable; create one with New and call Init before any other hook.
type Sink struct {
	cfg     config.Config
	builder *tags.Builder

	provider *sdkmetric.MeterProvider
	inst     *instruments

	reader  sdkmetric.Reader
	stopped bool
}

// Option adjusts sink construction.
type Option func(*Sink)

// WithReader overrides the SDK reader, bypassing backend selection. Used by
// tests to capture emissions in memory with a manual reader.
func WithReader(r sdkmetric.Reader) Option {
	return func(s *Sink) { s.reader = r }
}

// New creates an uninitialized Sink.
func New(opts ...Option) *Sink {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init resolves and validates configuration, constructs the export backend,
// and creates the instrument set. An explicit config wins over the viper
// source. Configuration errors are fatal and leave the sink uninitialized;
// no instrument is built against an invalid backend.
func (s *Sink) Init(ctx context.Context, explicit *config.Config, identity tags.Identity, v *viper.Viper) error {
	cfg, err := config.Resolve(explicit, v)
	if err != nil {
		return fmt.Errorf("resolve reporting config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reporting config: %w", err)
	}

	builder, err := tags.NewBuilder(identity, cfg.CustomTags)
	if err != nil {
		return err
	}

	reader := s.reader
	if reader == nil {
		exporter, err := export.Select(ctx, cfg)
		if err != nil {
			return fmt.Errorf("select exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName())),
	)
	if err != nil {
		return fmt.Errorf("metrics resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	inst, err := newInstruments(provider.Meter(scopeName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return fmt.Errorf("create instruments: %w", err)
	}

	s.cfg = cfg
	s.builder = builder
	s.provider = provider
	s.inst = inst
	s.stopped = false
	return nil
}

// Config returns the resolved configuration. Zero value before Init.
func (s *Sink) Config() config.Config {
	return s.cfg
}

// Stop force-flushes pending data and shuts the export backend down.
// Idempotent: once stopped, or if Init never ran, it is a no-op.
func (s *Sink) Stop(ctx context.Context) error {
	if s.provider == nil || s.stopped {
		return nil
	}
	s.stopped = true

	flushErr := s.provider.ForceFlush(ctx)
	shutdownErr := s.provider.Shutdown(ctx)
	return errors.Join(flushErr, shutdownErr)
}

// Close releases the exporter's resources. Safe to call multiple times.
func (s *Sink) Close() error {
	return s.Stop(context.Background())
}

func serviceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return "loadsink"
}

func (s *Sink) ready() error {
	if s.builder == nil || s.inst == nil {
		return ErrNotInitialized
	}
	return nil
}
