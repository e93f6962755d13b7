package citypulse

import (
	"github.com/ghalamif/CityPulse/internal/app/config"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// APIConfig points at the optional remote dashboard API.
	APIConfig = config.APIConfig
	// PollerConfig sets the refresh interval and subscriber buffers.
	PollerConfig = config.PollerConfig
	// AuthConfig supplies the bearer token or the file holding it.
	AuthConfig = config.AuthConfig
	// HTTPConfig configures the dashboard HTTP server.
	HTTPConfig = config.HTTPConfig
	// OutboxConfig configures durable operator submissions.
	OutboxConfig = config.OutboxConfig
	// Policy bounds the outbox WAL and queue.
	Policy = ports.Policy
	// ArchiveConfig enables the Postgres stats archive.
	ArchiveConfig = config.ArchiveConfig
	// RelayConfig enables the NATS stats relay.
	RelayConfig = config.RelayConfig
	// LogConfig selects log level and format.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a config that runs on simulated data only.
func DefaultConfig() *Config {
	return config.Default()
}
