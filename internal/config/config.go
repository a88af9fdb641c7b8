// Package config provides configuration resolution and validation for the
// reporting sink.
package config

import (
	"fmt"
	"strings"

	"github.com/torosent/loadsink/internal/tags"
)

// ExporterType selects the metric export backend.
type ExporterType string

const (
	ExporterOtlp ExporterType = "otlp"
	ExporterFile ExporterType = "file"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolGRPC Protocol = "grpc"
)

// DefaultOtlpEndpoint is the push destination used when none is configured.
const DefaultOtlpEndpoint = "http://localhost:9464/metrics"

// Config holds the sink's resolved settings. It is validated once at Init
// and read-only afterwards.
type Config struct {
	Exporter     ExporterType `mapstructure:"exporter"`
	OtlpEndpoint string       `mapstructure:"otlp_endpoint"`
	OtlpProtocol Protocol     `mapstructure:"otlp_protocol"`
	OtlpInsecure bool         `mapstructure:"otlp_insecure"`
	FilePath     string       `mapstructure:"file_path"`
	CustomTags   []tags.Tag   `mapstructure:"custom_tags"`
}

// Default returns the configuration used when no source provides a value.
func Default() Config {
	return Config{
		Exporter:     ExporterOtlp,
		OtlpEndpoint: DefaultOtlpEndpoint,
		OtlpProtocol: ProtocolHTTP,
	}
}

// ValidationError aggregates every configuration issue found.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual validation issues.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration. Failures here are fatal: the sink must
// not build any instrument against an invalid backend.
func (c Config) Validate() error {
	var issues []string

	switch c.Exporter {
	case ExporterOtlp:
		if strings.TrimSpace(c.OtlpEndpoint) == "" {
			issues = append(issues, "otlp_endpoint cannot be empty for the otlp exporter")
		}
		switch c.OtlpProtocol {
		case ProtocolHTTP, ProtocolGRPC:
		default:
			issues = append(issues, fmt.Sprintf("otlp_protocol must be %q or %q, got %q", ProtocolHTTP, ProtocolGRPC, c.OtlpProtocol))
		}
	case ExporterFile:
		if strings.TrimSpace(c.FilePath) == "" {
			issues = append(issues, "file_path is required for the file exporter")
		}
	default:
		issues = append(issues, fmt.Sprintf("exporter must be %q or %q, got %q", ExporterOtlp, ExporterFile, c.Exporter))
	}

	issues = append(issues, validateCustomTags(c.CustomTags)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// validateCustomTags rejects empty keys, duplicate keys, and keys that
// collide with the label names the sink assigns itself. Without this check
// the emitted label set would carry duplicate keys with undefined
// consumer-side behavior.
func validateCustomTags(customTags []tags.Tag) []string {
	var issues []string
	reserved := make(map[string]struct{}, len(tags.ReservedKeys))
	for _, key := range tags.ReservedKeys {
		reserved[key] = struct{}{}
	}

	seen := map[string]int{}
	for idx, tag := range customTags {
		key := strings.TrimSpace(tag.Key)
		if key == "" {
			issues = append(issues, fmt.Sprintf("custom_tags[%d]: key cannot be empty", idx))
			continue
		}
		if _, ok := reserved[strings.ToLower(key)]; ok {
			issues = append(issues, fmt.Sprintf("custom_tags[%d]: key %q is reserved", idx, key))
		}
		if prev, ok := seen[key]; ok {
			issues = append(issues, fmt.Sprintf("custom_tags[%d]: duplicate key also defined at index %d", idx, prev))
		} else {
			seen[key] = idx
		}
	}
	return issues
}
