package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/loadsink/internal/config"
	"github.com/torosent/loadsink/internal/extractor"
	"github.com/torosent/loadsink/internal/runner"
	"github.com/torosent/loadsink/internal/scenario"
	"github.com/torosent/loadsink/internal/sink"
	"github.com/torosent/loadsink/internal/stats"
	"github.com/torosent/loadsink/internal/tags"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadsink",
		Short:         "Run a scenario file and report statistics through the OpenTelemetry sink",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("scenario", "", "Path to the YAML scenario definition (required)")
	flags.String("config", "", "Path to a configuration file holding the reporting section (JSON or YAML)")
	flags.DurationP("duration", "d", 30*time.Second, "How long to run the test")
	flags.Duration("report-interval", 5*time.Second, "Interval between realtime snapshots")
	flags.IntP("rate", "r", 0, "Requests per second limit per scenario (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")

	// Reporting overrides; any of these wins over the config file.
	flags.String("exporter", "", "Exporter type: 'otlp' or 'file'")
	flags.String("otlp-endpoint", "", "OTLP push destination URL")
	flags.String("otlp-protocol", "", "OTLP transport: 'http' or 'grpc'")
	flags.Bool("otlp-insecure", false, "Disable TLS for the OTLP connection")
	flags.String("file-path", "", "Append destination for the file exporter")
	flags.StringSlice("tag", nil, "Custom tag in key=value form (repeatable)")

	flags.String("node-type", "local", "Node type reported in the identity labels")
	flags.String("cluster-id", "", "Cluster id reported in the identity labels")

	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func run(cmd *cobra.Command) error {
	flags := cmd.Flags()

	scenarioPath, _ := flags.GetString("scenario")
	def, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}

	v, err := loadConfigFile(flags)
	if err != nil {
		return err
	}
	explicit, err := explicitConfig(flags, v)
	if err != nil {
		return err
	}

	nodeType, _ := flags.GetString("node-type")
	clusterID, _ := flags.GetString("cluster-id")
	identity := tags.Identity{
		SessionID:        tags.NewSessionID(),
		CurrentOperation: "run",
		NodeType:         nodeType,
		TestSuite:        def.TestSuite,
		TestName:         def.TestName,
		ClusterID:        clusterID,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	snk := sink.New()
	if err := snk.Init(ctx, explicit, identity, v); err != nil {
		return err
	}
	defer snk.Close()

	if err := snk.Start(ctx, stats.SessionInfo{NodeCount: 1, CPUCount: int64(runtime.NumCPU())}); err != nil {
		return err
	}

	collector := stats.NewCollector()
	buf := &gaugeBuffer{}

	timeout, _ := flags.GetDuration("timeout")
	ratePerSecond, _ := flags.GetInt("rate")
	r := runner.New(runner.Options{
		Definition:    def,
		Collector:     collector,
		Client:        &http.Client{Timeout: timeout},
		RatePerSecond: ratePerSecond,
		OnResponse: func(scenarioName string, step scenario.Step, body []byte) {
			if step.MetricPath == "" {
				return
			}
			if val, ok := extractor.Extract(body, step.MetricPath); ok {
				buf.add(stats.Gauge{
					ScenarioName: scenarioName,
					MetricName:   step.MetricName,
					Unit:         step.MetricUnit,
					Value:        val,
				})
			}
		},
	})

	duration, _ := flags.GetDuration("duration")
	runCtx, stop := context.WithTimeout(ctx, duration)
	defer stop()

	collector.Start()
	done := make(chan struct{})
	go func() {
		r.Run(runCtx)
		close(done)
	}()

	reportInterval, _ := flags.GetDuration("report-interval")
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			if err := snk.SaveRealtimeStats(ctx, collector.Snapshot(0)); err != nil {
				return err
			}
			if snap := buf.drain(); len(snap.Gauges) > 0 {
				if err := snk.SaveRealtimeMetrics(ctx, snap); err != nil {
					return err
				}
			}
		}
	}

	if err := snk.SaveFinalStats(ctx, stats.NodeStats{Scenarios: collector.Snapshot(0)}); err != nil {
		return err
	}
	return snk.Stop(ctx)
}

func loadConfigFile(flags *pflag.FlagSet) (*viper.Viper, error) {
	configPath, _ := flags.GetString("config")
	if configPath == "" {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return v, nil
}

// explicitConfig layers the provided reporting flags over the configuration
// resolved from the file source, so a single flag overrides exactly one
// setting and the rest keep their file values. Returns nil when no reporting
// flag was provided and the file alone decides.
func explicitConfig(flags *pflag.FlagSet, v *viper.Viper) (*config.Config, error) {
	changed := false
	for _, name := range []string{"exporter", "otlp-endpoint", "otlp-protocol", "otlp-insecure", "file-path", "tag"} {
		if flags.Changed(name) {
			changed = true
			break
		}
	}
	if !changed {
		return nil, nil
	}

	cfg, err := config.Resolve(nil, v)
	if err != nil {
		return nil, err
	}

	if flags.Changed("exporter") {
		val, _ := flags.GetString("exporter")
		cfg.Exporter = config.ExporterType(strings.ToLower(strings.TrimSpace(val)))
	}
	if flags.Changed("otlp-endpoint") {
		val, _ := flags.GetString("otlp-endpoint")
		cfg.OtlpEndpoint = strings.TrimSpace(val)
	}
	if flags.Changed("otlp-protocol") {
		val, _ := flags.GetString("otlp-protocol")
		cfg.OtlpProtocol = config.Protocol(strings.ToLower(strings.TrimSpace(val)))
	}
	if flags.Changed("otlp-insecure") {
		cfg.OtlpInsecure, _ = flags.GetBool("otlp-insecure")
	}
	if flags.Changed("file-path") {
		val, _ := flags.GetString("file-path")
		cfg.Exporter = config.ExporterFile
		cfg.FilePath = strings.TrimSpace(val)
	}

	if flags.Changed("tag") {
		entries, _ := flags.GetStringSlice("tag")
		customTags := make([]tags.Tag, 0, len(entries))
		for _, entry := range entries {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				return nil, fmt.Errorf("tag must be in key=value format: %s", entry)
			}
			customTags = append(customTags, tags.Tag{
				Key:   strings.TrimSpace(parts[0]),
				Value: strings.TrimSpace(parts[1]),
			})
		}
		cfg.CustomTags = customTags
	}
	return &cfg, nil
}

// gaugeBuffer accumulates ad-hoc gauges between realtime snapshots.
type gaugeBuffer struct {
	mu     sync.Mutex
	gauges []stats.Gauge
}

func (b *gaugeBuffer) add(g stats.Gauge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gauges = append(b.gauges, g)
}

func (b *gaugeBuffer) drain() stats.MetricSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := stats.MetricSnapshot{Gauges: b.gauges}
	b.gauges = nil
	return snap
}
