package config

import "fmt"

// PrometheusConfig exposes run metrics on an HTTP endpoint.
type PrometheusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// InfluxConfig pushes run metrics to an InfluxDB instance.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// MetricsConfig defines settings for metrics sinks.
type MetricsConfig struct {
	Prometheus PrometheusConfig `json:"prometheus"`
	Influx     InfluxConfig     `json:"influx"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Prometheus.Addr == "" {
		c.Prometheus.Addr = ":9100"
	}
}

// Validate checks mandatory fields for enabled sinks.
func (c MetricsConfig) Validate() error {
	if c.Influx.Enabled {
		if c.Influx.URL == "" {
			return fmt.Errorf("influx url is required")
		}
		if c.Influx.Org == "" || c.Influx.Bucket == "" {
			return fmt.Errorf("influx org and bucket are required")
		}
	}
	return nil
}
