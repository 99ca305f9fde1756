// Package config loads the service configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/recommend"
	_ "github.com/kilianp07/evreco/infra/metrics" // registers sink types
	"github.com/kilianp07/evreco/infra/monitoring"
	"github.com/kilianp07/evreco/infra/mqtt"
	"github.com/kilianp07/evreco/infra/stationdb"
	"github.com/kilianp07/evreco/jobs/retrain"
)

type Config struct {
	Engine      recommend.Config   `json:"engine"`
	Datasource  stationdb.Config   `json:"datasource"`
	Server      ServerConfig       `json:"server"`
	Metrics     metrics.Config     `json:"metrics"`
	DecisionLog decisionlog.Config `json:"decision_log"`
	MQTT        mqtt.Config        `json:"mqtt"`
	Retrain     retrain.Config     `json:"retrain"`
	Sentry      monitoring.Config  `json:"sentry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr               string `json:"addr"`
	TrainRatePerMinute int    `json:"train_rate_per_minute"`
}

// SetDefaults applies defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.TrainRatePerMinute == 0 {
		c.TrainRatePerMinute = 6
	}
}

// Load reads path and applies environment overrides such as
// K_ENGINE__TREES=50. A missing file is tolerated when path is the
// default so the service can run from the environment alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			if !(errors.Is(err, os.ErrNotExist) && path == DefaultPath) {
				return nil, err
			}
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath is the config file used when none is given.
const DefaultPath = "config.yaml"

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Engine.SetDefaults()
	c.Datasource.SetDefaults()
	c.Server.SetDefaults()
	c.DecisionLog.SetDefaults()
	c.MQTT.SetDefaults()
	if c.Metrics.PrometheusAddr == "" && c.hasSink("prometheus") {
		c.Metrics.PrometheusAddr = ":9100"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Datasource.Validate(); err != nil {
		return err
	}
	if err := c.DecisionLog.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Retrain.Validate(); err != nil {
		return err
	}
	for _, s := range c.Metrics.Sinks {
		if !knownSink(s.Type) {
			return fmt.Errorf("metrics: unknown sink type %q", s.Type)
		}
	}
	return nil
}

func (c Config) hasSink(name string) bool {
	for _, s := range c.Metrics.Sinks {
		if s.Type == name {
			return true
		}
	}
	return false
}

func knownSink(name string) bool {
	for _, n := range metrics.SinkTypes() {
		if n == name {
			return true
		}
	}
	return false
}
