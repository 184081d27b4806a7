package bot

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
)

// RelayConfig tunes the relay core.
type RelayConfig struct {
	// RoutingCapacity bounds the number of live reply-routing entries.
	// Zero selects the default.
	RoutingCapacity int `yaml:"routing_capacity" envconfig:"RELAY_ROUTING_CAPACITY"`
}

// AuditConfig switches the Postgres transition journal on.
type AuditConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"AUDIT_ENABLED"`
}

// Config is the application configuration: the reusable core settings plus
// the relay-specific sections.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Relay    RelayConfig         `yaml:"relay"`
	Audit    AuditConfig         `yaml:"audit"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides, and
// validates the result. A missing bot token or operator identity is fatal.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if cfg.Relay.RoutingCapacity < 0 {
		return nil, fmt.Errorf("relay.routing_capacity must be >= 0")
	}
	if cfg.Audit.Enabled && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.host is required when audit.enabled is true")
	}
	return &cfg, nil
}
