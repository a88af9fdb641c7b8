// Package export selects and constructs the metric export backend the sink
// pushes its measurements through: an OTLP push exporter (http or grpc) or
// an append-to-file exporter for human inspection.
package export

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/loadsink/internal/config"
)

// Select constructs exactly one export backend for the given configuration.
// The configuration must already be validated; an exporter type that slips
// through unvalidated is still rejected here.
func Select(ctx context.Context, cfg config.Config) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case config.ExporterOtlp:
		return newOtlpExporter(ctx, cfg)
	case config.ExporterFile:
		if strings.TrimSpace(cfg.FilePath) == "" {
			return nil, fmt.Errorf("file exporter requires a file path")
		}
		return NewFileExporter(cfg.FilePath), nil
	default:
		return nil, fmt.Errorf("unsupported exporter type %q: use %q or %q", cfg.Exporter, config.ExporterOtlp, config.ExporterFile)
	}
}

func newOtlpExporter(ctx context.Context, cfg config.Config) (sdkmetric.Exporter, error) {
	switch cfg.OtlpProtocol {
	case config.ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(stripScheme(cfg.OtlpEndpoint)),
		}
		if cfg.OtlpInsecure {
			opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case config.ProtocolHTTP, "":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(cfg.OtlpEndpoint),
		}
		if cfg.OtlpInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"http\" or \"grpc\"", cfg.OtlpProtocol)
	}
}

// stripScheme reduces a URL-style endpoint to host:port for the grpc client.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx >= 0 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}
