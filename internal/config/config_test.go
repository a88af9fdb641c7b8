package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/torosent/loadsink/internal/config"
	"github.com/torosent/loadsink/internal/tags"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Exporter != config.ExporterOtlp {
		t.Errorf("Exporter = %q, want otlp", cfg.Exporter)
	}
	if cfg.OtlpEndpoint != config.DefaultOtlpEndpoint {
		t.Errorf("OtlpEndpoint = %q, want %q", cfg.OtlpEndpoint, config.DefaultOtlpEndpoint)
	}
	if cfg.OtlpProtocol != config.ProtocolHTTP {
		t.Errorf("OtlpProtocol = %q, want http", cfg.OtlpProtocol)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{
			name: "valid otlp",
			cfg:  config.Default(),
		},
		{
			name: "valid file",
			cfg:  config.Config{Exporter: config.ExporterFile, FilePath: "/tmp/metrics.txt"},
		},
		{
			name:    "unknown exporter type",
			cfg:     config.Config{Exporter: "Foo"},
			wantErr: `exporter must be "otlp" or "file"`,
		},
		{
			name:    "file mode without path",
			cfg:     config.Config{Exporter: config.ExporterFile},
			wantErr: "file_path is required",
		},
		{
			name: "otlp without endpoint",
			cfg: config.Config{
				Exporter:     config.ExporterOtlp,
				OtlpProtocol: config.ProtocolHTTP,
			},
			wantErr: "otlp_endpoint cannot be empty",
		},
		{
			name: "unknown otlp protocol",
			cfg: config.Config{
				Exporter:     config.ExporterOtlp,
				OtlpEndpoint: config.DefaultOtlpEndpoint,
				OtlpProtocol: "quic",
			},
			wantErr: "otlp_protocol must be",
		},
		{
			name: "reserved custom tag key",
			cfg: config.Config{
				Exporter:     config.ExporterFile,
				FilePath:     "/tmp/metrics.txt",
				CustomTags:   []tags.Tag{{Key: "scenario_name", Value: "x"}},
				OtlpProtocol: config.ProtocolHTTP,
			},
			wantErr: `key "scenario_name" is reserved`,
		},
		{
			name: "duplicate custom tag key",
			cfg: config.Config{
				Exporter: config.ExporterFile,
				FilePath: "/tmp/metrics.txt",
				CustomTags: []tags.Tag{
					{Key: "env", Value: "a"},
					{Key: "env", Value: "b"},
				},
			},
			wantErr: "duplicate key",
		},
		{
			name: "empty custom tag key",
			cfg: config.Config{
				Exporter:   config.ExporterFile,
				FilePath:   "/tmp/metrics.txt",
				CustomTags: []tags.Tag{{Key: "  ", Value: "a"}},
			},
			wantErr: "key cannot be empty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tc.wantErr)
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error type = %T, want ValidationError", err)
			}
		})
	}
}

func TestResolveExplicitWins(t *testing.T) {
	v := viper.New()
	v.Set("reporting", map[string]interface{}{"exporter": "file", "file_path": "/tmp/from-viper.txt"})

	explicit := &config.Config{Exporter: config.ExporterFile, FilePath: "/tmp/explicit.txt"}
	cfg, err := config.Resolve(explicit, v)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.FilePath != "/tmp/explicit.txt" {
		t.Errorf("FilePath = %q, want the explicit value", cfg.FilePath)
	}
	if cfg.OtlpEndpoint != config.DefaultOtlpEndpoint {
		t.Errorf("OtlpEndpoint = %q, want default filled in", cfg.OtlpEndpoint)
	}
}

func TestResolveSubSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"target": "https://api.example.com",
		"reporting": {
			"exporter": "file",
			"file_path": "/tmp/metrics.txt",
			"custom_tags": [
				{"key": "env", "value": "staging"},
				{"key": "region", "value": "eu-west-1"}
			]
		}
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := config.Resolve(nil, v)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Exporter != config.ExporterFile {
		t.Errorf("Exporter = %q, want file", cfg.Exporter)
	}
	if cfg.FilePath != "/tmp/metrics.txt" {
		t.Errorf("FilePath = %q, want /tmp/metrics.txt", cfg.FilePath)
	}
	if len(cfg.CustomTags) != 2 {
		t.Fatalf("len(CustomTags) = %d, want 2", len(cfg.CustomTags))
	}
	if cfg.CustomTags[0].Key != "env" || cfg.CustomTags[0].Value != "staging" {
		t.Errorf("CustomTags[0] = %+v, want env=staging", cfg.CustomTags[0])
	}
	if cfg.CustomTags[1].Key != "region" {
		t.Errorf("CustomTags[1].Key = %q, want region (configured order)", cfg.CustomTags[1].Key)
	}
}

func TestResolveRootFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(
		"exporter: otlp\notlp_endpoint: http://collector:4318/v1/metrics\notlp_protocol: grpc\notlp_insecure: true\n",
	), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := config.Resolve(nil, v)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.OtlpEndpoint != "http://collector:4318/v1/metrics" {
		t.Errorf("OtlpEndpoint = %q, want root-level value", cfg.OtlpEndpoint)
	}
	if cfg.OtlpProtocol != config.ProtocolGRPC {
		t.Errorf("OtlpProtocol = %q, want grpc", cfg.OtlpProtocol)
	}
	if !cfg.OtlpInsecure {
		t.Error("OtlpInsecure = false, want true")
	}
}

func TestResolveNilSource(t *testing.T) {
	cfg, err := config.Resolve(nil, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := config.Default()
	if cfg.Exporter != want.Exporter || cfg.OtlpEndpoint != want.OtlpEndpoint || cfg.OtlpProtocol != want.OtlpProtocol {
		t.Errorf("Resolve(nil, nil) = %+v, want defaults", cfg)
	}
}
