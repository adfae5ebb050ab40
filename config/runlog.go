package config

import "fmt"

// RunLogConfig defines where the per-iteration run log is stored.
type RunLogConfig struct {
	// Path is the file location of the JSONL run log.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *RunLogConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "run.log"
	}
}

// Validate checks mandatory fields.
func (c RunLogConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("run log path is required")
	}
	return nil
}
