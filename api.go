package citypulse

import (
	base "github.com/ghalamif/CityPulse/pkg/citypulse"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull           = base.ErrQueueFull
	ErrWALFull             = base.ErrWALFull
	ErrOutboxClosed        = base.ErrOutboxClosed
	ErrSubscriberClosed    = base.ErrSubscriberClosed
	ErrSubmissionsDisabled = base.ErrSubmissionsDisabled
	ErrNotStarted          = base.ErrNotStarted
)

// Type aliases so consumers can import github.com/ghalamif/CityPulse directly.
type (
	Config           = base.Config
	APIConfig        = base.APIConfig
	PollerConfig     = base.PollerConfig
	AuthConfig       = base.AuthConfig
	HTTPConfig       = base.HTTPConfig
	OutboxConfig     = base.OutboxConfig
	Policy           = base.Policy
	ArchiveConfig    = base.ArchiveConfig
	RelayConfig      = base.RelayConfig
	LogConfig        = base.LogConfig
	Dashboard        = base.Dashboard
	DashboardOption  = base.DashboardOption
	StatsRecord      = base.StatsRecord
	SensorReading    = base.SensorReading
	DayComparison    = base.DayComparison
	Subscription     = base.Subscription
	Authenticator    = base.Authenticator
	StatsSource      = base.StatsSource
	ReadingSource    = base.ReadingSource
	ReadingSubmitter = base.ReadingSubmitter
	ComparisonSource = base.ComparisonSource
	StatsSink        = base.StatsSink
	StatsHandler     = base.StatsHandler
	Observability    = base.Observability
	Field            = base.Field
	WALEntryID       = base.WALEntryID
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Dashboard and options.
func NewDashboard(cfg *Config, opts ...DashboardOption) (*Dashboard, error) {
	return base.NewDashboard(cfg, opts...)
}

func WithStatsSource(src StatsSource) DashboardOption {
	return base.WithStatsSource(src)
}

func WithReadingSource(src ReadingSource) DashboardOption {
	return base.WithReadingSource(src)
}

func WithAuthenticator(a Authenticator) DashboardOption {
	return base.WithAuthenticator(a)
}

func WithSubmitter(s ReadingSubmitter) DashboardOption {
	return base.WithSubmitter(s)
}

func WithComparisonSource(c ComparisonSource) DashboardOption {
	return base.WithComparisonSource(c)
}

func WithObservability(obs Observability) DashboardOption {
	return base.WithObservability(obs)
}

func WithStatsSink(s StatsSink) DashboardOption {
	return base.WithStatsSink(s)
}

func WithRand(fn func() float64) DashboardOption {
	return base.WithRand(fn)
}

// Subscriber adapters.
func NewCallbackSubscriber(name string, fn StatsHandler) StatsSink {
	return base.NewCallbackSubscriber(name, fn)
}

func NewChannelSubscriber(name string, buffer int) (StatsSink, <-chan StatsRecord, func()) {
	return base.NewChannelSubscriber(name, buffer)
}
