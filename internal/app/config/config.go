package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/CityPulse/internal/ports"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Poller  PollerConfig  `yaml:"poller"`
	Auth    AuthConfig    `yaml:"auth"`
	HTTP    HTTPConfig    `yaml:"http"`
	Outbox  OutboxConfig  `yaml:"outbox"`
	Archive ArchiveConfig `yaml:"archive"`
	Relay   RelayConfig   `yaml:"relay"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig points at the optional remote dashboard API. With Enabled false
// the dashboard runs purely on simulated data.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

type PollerConfig struct {
	Interval         time.Duration `yaml:"interval"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
}

// AuthConfig supplies the bearer token. TokenFile wins over Token and is
// watched for changes.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type OutboxConfig struct {
	Dir    string       `yaml:"dir"`
	Policy ports.Policy `yaml:"policy"`
}

type ArchiveConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type RelayConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration used when no file is given: simulated data,
// no archive, no relay.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = 5 * time.Second
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = 2 * time.Second
	}
	if c.Poller.SubscriberBuffer == 0 {
		c.Poller.SubscriberBuffer = 8
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Outbox.Dir == "" {
		c.Outbox.Dir = "./data/outbox"
	}
	if c.Outbox.Policy.MaxWALSizeBytes == 0 {
		c.Outbox.Policy.MaxWALSizeBytes = 64 << 20
	}
	if c.Outbox.Policy.MaxQueueLen == 0 {
		c.Outbox.Policy.MaxQueueLen = 1024
	}
	if c.Outbox.Policy.MaxBatchSize == 0 {
		c.Outbox.Policy.MaxBatchSize = 32
	}
	if c.Outbox.Policy.IdleSleep == 0 {
		c.Outbox.Policy.IdleSleep = time.Second
	}
	if c.Outbox.Policy.OnQueueFull == "" {
		c.Outbox.Policy.OnQueueFull = "block"
	}
	if c.Outbox.Policy.OnWALFull == "" {
		c.Outbox.Policy.OnWALFull = "block"
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "stats_snapshots"
	}
	if c.Relay.Subject == "" {
		c.Relay.Subject = "citypulse.stats"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.API.Enabled {
		if c.API.BaseURL == "" {
			return fmt.Errorf("api.base_url is required when api.enabled")
		}
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.base_url %q must be an absolute URL", c.API.BaseURL)
		}
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Poller.Interval < 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	if c.Poller.SubscriberBuffer < 0 {
		return fmt.Errorf("poller.subscriber_buffer must be positive")
	}
	if err := validPolicy("outbox.policy.on_queue_full", c.Outbox.Policy.OnQueueFull); err != nil {
		return err
	}
	if err := validPolicy("outbox.policy.on_wal_full", c.Outbox.Policy.OnWALFull); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func validPolicy(field, v string) error {
	switch v {
	case "block", "drop", "reject":
		return nil
	}
	return fmt.Errorf("%s must be block, drop or reject, got %q", field, v)
}
