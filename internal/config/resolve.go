package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/torosent/loadsink/internal/tags"
)

// Section is the configuration sub-section the sink looks for before
// falling back to root-level keys.
const Section = "reporting"

// Resolve produces the sink configuration. An explicit config wins outright;
// otherwise settings are read from the viper source, trying the "reporting"
// sub-section first and then the root. Missing values fall back to defaults.
func Resolve(explicit *Config, v *viper.Viper) (Config, error) {
	if explicit != nil {
		cfg := *explicit
		applyDefaults(&cfg)
		return cfg, nil
	}

	cfg := Default()
	if v == nil {
		return cfg, nil
	}

	settings := v.AllSettings()
	if sub, ok := settings[Section]; ok {
		section, err := toStringKeyMap(sub)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", Section, err)
		}
		settings = section
	}

	if err := applySettings(&cfg, settings); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Exporter == "" {
		cfg.Exporter = ExporterOtlp
	}
	if cfg.OtlpEndpoint == "" {
		cfg.OtlpEndpoint = DefaultOtlpEndpoint
	}
	if cfg.OtlpProtocol == "" {
		cfg.OtlpProtocol = ProtocolHTTP
	}
}

// applySettings applies settings from a configuration source to the Config.
func applySettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "exporter", "exporter_type", "exporter-type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("exporter: %w", err)
		}
		cfg.Exporter = ExporterType(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "otlpendpoint", "otlp_endpoint", "otlp-endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("otlp_endpoint: %w", err)
		}
		cfg.OtlpEndpoint = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "otlpprotocol", "otlp_protocol", "otlp-protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("otlp_protocol: %w", err)
		}
		cfg.OtlpProtocol = Protocol(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "otlpinsecure", "otlp_insecure", "otlp-insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("otlp_insecure: %w", err)
		}
		cfg.OtlpInsecure = val
	}

	if raw, ok := lookupSetting(settings, "filepath", "file_path", "file-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("file_path: %w", err)
		}
		cfg.FilePath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "customtags", "custom_tags", "custom-tags"); ok {
		customTags, err := parseCustomTags(raw)
		if err != nil {
			return fmt.Errorf("custom_tags: %w", err)
		}
		cfg.CustomTags = customTags
	}

	return nil
}

func parseCustomTags(value interface{}) ([]tags.Tag, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	customTags := make([]tags.Tag, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var tag tags.Tag
		if raw, ok := lookupSetting(entry, "key"); ok {
			val, err := asString(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d key: %w", idx, err)
			}
			tag.Key = strings.TrimSpace(val)
		}
		if raw, ok := lookupSetting(entry, "value"); ok {
			val, err := asString(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d value: %w", idx, err)
			}
			tag.Value = val
		}
		customTags = append(customTags, tag)
	}
	return customTags, nil
}
