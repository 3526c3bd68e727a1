// Package config holds the explicit runtime configuration for streamctl.
// Everything the orchestrator needs is carried in a Config value; there are
// no package-level defaults consulted at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/streamctl/internal/naming"
)

// AWS resource name limits relevant to discovery hints. Auto Scaling group
// names allow far more, but the flow/channel consoles clip at 32 and the
// provisioning layer uses the same bound everywhere.
const nameLimit = 32

type Config struct {
	// Region is the AWS region holding the pipeline.
	Region string `yaml:"region"`
	// StackName identifies the provisioning stack whose resources are
	// discovered by naming convention.
	StackName string `yaml:"stackName"`

	// Discovery hints. Empty hints are derived from StackName.
	PoolNameHint    string `yaml:"poolNameHint"`
	FlowNameHint    string `yaml:"flowNameHint"`
	ChannelNameHint string `yaml:"channelNameHint"`

	// ActiveCapacity is the appliance count the pool is set to on start.
	ActiveCapacity int32 `yaml:"activeCapacity"`
	// MinHealthyTargets is the redundancy floor waited for behind the
	// pool's target group before streams are started.
	MinHealthyTargets int `yaml:"minHealthyTargets"`

	PollInterval    time.Duration `yaml:"pollInterval"`
	PollCeiling     time.Duration `yaml:"pollCeiling"`
	RestartCooldown time.Duration `yaml:"restartCooldown"`

	Serve ServeConfig `yaml:"serve"`
}

// ServeConfig configures the optional HTTP surface.
type ServeConfig struct {
	Port int `yaml:"port"`
	// Token guards the mutating endpoints (bearer auth).
	Token string `yaml:"token"`
	// Cooldown suppresses back-to-back lifecycle operations arriving
	// over HTTP.
	Cooldown time.Duration `yaml:"cooldown"`
}

// Default returns the baseline configuration. Callers overlay a YAML file
// and flags on top of it.
func Default() Config {
	return Config{
		Region:            "us-east-1",
		StackName:         "stream-inspection",
		ActiveCapacity:    2,
		MinHealthyTargets: 2,
		PollInterval:      10 * time.Second,
		PollCeiling:       5 * time.Minute,
		RestartCooldown:   30 * time.Second,
		Serve: ServeConfig{
			Port:     8080,
			Cooldown: time.Minute,
		},
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyHintDefaults fills empty discovery hints from the stack name using
// the same identifier convention the provisioning layer applies.
func (c *Config) ApplyHintDefaults() {
	if c.PoolNameHint == "" {
		c.PoolNameHint = naming.Prefix(c.StackName, "appliance", nameLimit)
	}
	if c.FlowNameHint == "" {
		c.FlowNameHint = naming.Prefix(c.StackName, "ingest", nameLimit)
	}
	if c.ChannelNameHint == "" {
		c.ChannelNameHint = naming.Prefix(c.StackName, "transcode", nameLimit)
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.StackName == "" {
		return fmt.Errorf("stackName is required")
	}
	if c.ActiveCapacity < 1 {
		return fmt.Errorf("activeCapacity must be at least 1")
	}
	if c.MinHealthyTargets < 0 {
		return fmt.Errorf("minHealthyTargets must be non-negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("pollInterval must be positive")
	}
	if c.PollCeiling < c.PollInterval {
		return fmt.Errorf("pollCeiling must be at least pollInterval")
	}
	if c.RestartCooldown < 0 {
		return fmt.Errorf("restartCooldown must be non-negative")
	}
	return nil
}
