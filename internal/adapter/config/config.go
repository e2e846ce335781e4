package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

// Config is the full bridge configuration.
type Config struct {
	Service ServiceConfig       `mapstructure:"service" yaml:"service"`
	Device  domain.DeviceConfig `mapstructure:"device" yaml:"device"`
	Broker  domain.BrokerConfig `mapstructure:"broker" yaml:"broker"`
	Fixture FixtureConfig       `mapstructure:"fixture" yaml:"fixture"`
}

// ServiceConfig covers logging and the HTTP sidecar for health and metrics.
type ServiceConfig struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	HTTPPort  int    `mapstructure:"http_port" yaml:"http_port"`
}

// FixtureConfig switches the bridge onto a canned modem payload instead of
// live device traffic.
type FixtureConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load reads configuration from a YAML file and ZTEBRIDGE_* environment
// variables, applies defaults and validates the result. An empty path falls
// back to searching ./config and the working directory; a missing file is
// fine as long as the environment supplies what validation needs.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ZTEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Device.Normalize(); err != nil {
		return nil, fmt.Errorf("device config: %w", err)
	}
	if err := cfg.Broker.Normalize(); err != nil {
		return nil, fmt.Errorf("broker config: %w", err)
	}
	if err := cfg.Device.Validate(); err != nil {
		return nil, fmt.Errorf("device config: %w", err)
	}
	if err := cfg.Broker.Validate(); err != nil {
		return nil, fmt.Errorf("broker config: %w", err)
	}
	if cfg.Fixture.Enabled && cfg.Fixture.Path == "" {
		return nil, fmt.Errorf("fixture config: path is required when enabled")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.log_level", "info")
	v.SetDefault("service.log_format", "json")
	v.SetDefault("service.http_port", 9090)

	v.SetDefault("device.host", "http://192.168.0.1")
	v.SetDefault("device.password", "")

	v.SetDefault("broker.host", "")
	v.SetDefault("broker.port", 1883)
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.root_topic", "zte")
	v.SetDefault("broker.qos", 0)
	v.SetDefault("broker.retain", false)
	v.SetDefault("broker.reconnect_interval", "5s")

	v.SetDefault("fixture.enabled", false)
	v.SetDefault("fixture.path", "")
}
