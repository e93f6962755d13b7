package citypulse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/CityPulse/internal/adapters/auth"
	"github.com/ghalamif/CityPulse/internal/adapters/httpapi"
	"github.com/ghalamif/CityPulse/internal/adapters/observability"
	"github.com/ghalamif/CityPulse/internal/adapters/queue"
	"github.com/ghalamif/CityPulse/internal/adapters/relay"
	"github.com/ghalamif/CityPulse/internal/adapters/sink"
	"github.com/ghalamif/CityPulse/internal/adapters/wal"
	"github.com/ghalamif/CityPulse/internal/adapters/web"
	"github.com/ghalamif/CityPulse/internal/app/pipeline"
	"github.com/ghalamif/CityPulse/internal/app/poller"
	"github.com/ghalamif/CityPulse/internal/ports"
)

var (
	// ErrSubmissionsDisabled is returned by Submit when no upstream API or
	// custom submitter is configured.
	ErrSubmissionsDisabled = errors.New("citypulse: submissions disabled")
	// ErrNotStarted is returned by Submit before Start.
	ErrNotStarted = errors.New("citypulse: dashboard not started")
)

// DashboardOption customizes the dependencies used by Dashboard.
type DashboardOption func(*overrides)

type overrides struct {
	stats     ports.StatsSource
	readings  ports.ReadingSource
	auth      ports.Authenticator
	submitter ports.ReadingSubmitter
	compare   ports.ComparisonSource
	obs       ports.Observability
	sinks     []ports.StatsSink
	rnd       func() float64
}

// WithStatsSource replaces the remote GET /dashboard/stats level.
func WithStatsSource(src StatsSource) DashboardOption {
	return func(o *overrides) { o.stats = src }
}

// WithReadingSource replaces the remote GET /sensor-data level and the
// readings endpoint.
func WithReadingSource(src ReadingSource) DashboardOption {
	return func(o *overrides) { o.readings = src }
}

// WithAuthenticator overrides the token from config.
func WithAuthenticator(a Authenticator) DashboardOption {
	return func(o *overrides) { o.auth = a }
}

// WithSubmitter sends operator readings somewhere other than the remote API.
func WithSubmitter(s ReadingSubmitter) DashboardOption {
	return func(o *overrides) { o.submitter = s }
}

// WithComparisonSource overrides day-to-day comparisons.
func WithComparisonSource(c ComparisonSource) DashboardOption {
	return func(o *overrides) { o.compare = c }
}

// WithObservability plugs in a custom observability backend. The /metrics
// endpoint then serves the default Prometheus registry.
func WithObservability(obs Observability) DashboardOption {
	return func(o *overrides) { o.obs = obs }
}

// WithStatsSink adds a sink that receives every published record.
func WithStatsSink(s StatsSink) DashboardOption {
	return func(o *overrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithRand replaces the jitter source used for simulated stats.
func WithRand(fn func() float64) DashboardOption {
	return func(o *overrides) { o.rnd = fn }
}

// Dashboard wires the poller, broadcaster, outbox, sinks and HTTP surface and
// exposes lifecycle hooks for embedding CityPulse in any Go service.
type Dashboard struct {
	cfg       *Config
	obs       ports.Observability
	metrics   http.Handler
	auth      ports.Authenticator
	readings  ports.ReadingSource
	compare   ports.ComparisonSource
	submitter ports.ReadingSubmitter
	bc        *poller.Broadcaster
	poller    *poller.Poller
	wal       *wal.FileWAL
	sinks     []ports.StatsSink
	closers   []io.Closer

	mu       sync.Mutex
	started  bool
	outbox   *pipeline.Outbox
	srv      *http.Server
	addr     string
	srvErr   chan error
	sinkStop context.CancelFunc
	sinkWG   sync.WaitGroup
	shutOnce sync.Once
	shutErr  error
}

// NewDashboard bootstraps the default adapters (remote API client, token
// from config, Prometheus observability, file WAL outbox, optional archive
// and relay sinks). DashboardOption values override any of them.
func NewDashboard(cfg *Config, opts ...DashboardOption) (d *Dashboard, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	d = &Dashboard{cfg: cfg}
	defer func() {
		if err != nil {
			d.closeResources()
		}
	}()

	d.obs = ov.obs
	d.metrics = promhttp.Handler()
	if d.obs == nil {
		logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		d.obs = observability.NewPromObs(reg, logger)
		d.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	d.auth = ov.auth
	if d.auth == nil {
		if cfg.Auth.TokenFile != "" {
			ft, err := auth.NewFileToken(cfg.Auth.TokenFile, d.obs)
			if err != nil {
				return nil, err
			}
			d.closers = append(d.closers, ft)
			d.auth = ft
		} else {
			d.auth = auth.StaticToken(cfg.Auth.Token)
		}
	}

	var client *httpapi.Client
	if cfg.API.Enabled {
		client, err = httpapi.NewClient(httpapi.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, d.auth)
		if err != nil {
			return nil, err
		}
	}

	stats := ov.stats
	d.readings = ov.readings
	d.compare = ov.compare
	d.submitter = ov.submitter
	if client != nil {
		if stats == nil {
			stats = client
		}
		if d.readings == nil {
			d.readings = client
		}
		if d.compare == nil {
			d.compare = client
		}
		if d.submitter == nil {
			d.submitter = client
		}
	}
	if d.readings == nil {
		d.readings = httpapi.StaticReadings{}
	}
	if d.compare == nil {
		d.compare = httpapi.OfflineComparisons{}
	}

	if d.submitter != nil {
		d.wal, err = wal.NewFileWAL(cfg.Outbox.Dir)
		if err != nil {
			return nil, fmt.Errorf("open outbox: %w", err)
		}
	}

	d.sinks = append(d.sinks, ov.sinks...)
	if cfg.Archive.ConnString != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err := sink.OpenArchive(ctx, cfg.Archive.ConnString, cfg.Archive.Table)
		if err == nil {
			d.closers = append(d.closers, archive)
			err = archive.EnsureSchema(ctx)
		}
		cancel()
		if err != nil {
			return nil, err
		}
		d.sinks = append(d.sinks, archive)
	}
	if cfg.Relay.NATSURL != "" {
		r, err := relay.ConnectNATS(cfg.Relay.NATSURL, cfg.Relay.Subject, d.obs)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, r)
		d.sinks = append(d.sinks, r)
	}

	d.bc = poller.NewBroadcaster(d.obs)

	var popts []poller.Option
	if ov.rnd != nil {
		popts = append(popts, poller.WithRand(ov.rnd))
	}
	// Custom sources count as an enabled API; they are still gated on auth.
	apiEnabled := cfg.API.Enabled || ov.stats != nil || ov.readings != nil
	d.poller, err = poller.New(
		poller.Config{Interval: cfg.Poller.Interval, APIEnabled: apiEnabled},
		d.auth,
		poller.DefaultChain(stats, sourceOrNil(ov.readings, client)),
		d.bc,
		d.obs,
		popts...,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// sourceOrNil keeps the offline fixture out of the fallback chain.
func sourceOrNil(override ports.ReadingSource, client *httpapi.Client) ports.ReadingSource {
	if override != nil {
		return override
	}
	if client != nil {
		return client
	}
	return nil
}

// Start launches the outbox, sinks, poller and HTTP server. It returns
// immediately; call Run to block on a context instead.
func (d *Dashboard) Start() (err error) {
	if d == nil {
		return fmt.Errorf("dashboard is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dashboard already started")
	}
	defer func() {
		if err != nil {
			d.rollbackStart()
		}
	}()

	if d.submitter != nil {
		ob, err := pipeline.StartOutbox(d.wal, queue.NewMemQueue(d.cfg.Outbox.Policy.MaxQueueLen), d.submitter,
			d.cfg.Outbox.Policy, d.obs, pipeline.WithPermanentError(httpapi.IsClientError))
		if err != nil {
			return err
		}
		d.outbox = ob
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	d.sinkStop = cancel
	for _, s := range d.sinks {
		sub := d.bc.Subscribe(d.cfg.Poller.SubscriberBuffer)
		d.sinkWG.Add(1)
		go func(s ports.StatsSink, sub *poller.Subscription) {
			defer d.sinkWG.Done()
			defer sub.Unsubscribe()
			pipeline.RunStatsSink(sinkCtx, sub.C(), s, d.obs)
		}(s, sub)
	}

	if d.cfg.HTTP.Addr != "" {
		ln, err := net.Listen("tcp", d.cfg.HTTP.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", d.cfg.HTTP.Addr, err)
		}
		d.addr = ln.Addr().String()
		d.srv = &http.Server{
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		d.srvErr = make(chan error, 1)
		go func() {
			if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.obs.LogCritical("http_server_exited", err)
				d.srvErr <- err
			}
		}()
	}

	if err = d.poller.Start(); err != nil {
		return err
	}
	d.started = true
	d.obs.LogInfo("dashboard_started",
		Field{Key: "addr", Value: d.addr},
		Field{Key: "interval", Value: d.cfg.Poller.Interval},
		Field{Key: "api_enabled", Value: d.cfg.API.Enabled},
		Field{Key: "sinks", Value: len(d.sinks)},
	)
	return nil
}

// rollbackStart undoes a partial Start. Called with d.mu held.
func (d *Dashboard) rollbackStart() {
	if d.srv != nil {
		_ = d.srv.Close()
		d.srv = nil
	}
	if d.sinkStop != nil {
		d.sinkStop()
		d.sinkWG.Wait()
		d.sinkStop = nil
	}
	if d.outbox != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.outbox.Close(ctx)
		cancel()
		d.outbox = nil
	}
}

// Run starts the dashboard and blocks until ctx is cancelled or the HTTP
// server fails, then shuts down gracefully.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-d.srvErr:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, d.Shutdown(shutdownCtx))
}

// Shutdown stops polling, lets in-flight ticks publish, closes every
// subscription, then stops the HTTP server, sinks, outbox and connections.
func (d *Dashboard) Shutdown(ctx context.Context) error {
	d.shutOnce.Do(func() {
		var errs []error

		d.poller.Stop()
		if err := d.poller.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait for ticks: %w", err))
		}
		// Closing the broadcaster ends SSE streams and sink loops.
		d.bc.Close()

		d.mu.Lock()
		srv, ob, stop := d.srv, d.outbox, d.sinkStop
		d.mu.Unlock()

		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
		if stop != nil {
			done := make(chan struct{})
			go func() { d.sinkWG.Wait(); close(done) }()
			select {
			case <-done:
			case <-ctx.Done():
				stop()
				errs = append(errs, fmt.Errorf("stats sinks: %w", ctx.Err()))
			}
			stop()
		}
		if ob != nil {
			if err := ob.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		} else if d.wal != nil {
			errs = append(errs, d.wal.Close())
		}
		errs = append(errs, d.closeResources())

		d.shutErr = errors.Join(errs...)
	})
	return d.shutErr
}

func (d *Dashboard) closeResources() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Subscribe attaches a live subscriber. Records published before the call
// are not replayed.
func (d *Dashboard) Subscribe(buffer int) *Subscription {
	return d.bc.Subscribe(buffer)
}

// Latest returns the most recently published record.
func (d *Dashboard) Latest() (StatsRecord, bool) {
	return d.bc.Latest()
}

// Submit queues an operator reading for delivery to the upstream API.
func (d *Dashboard) Submit(ctx context.Context, r SensorReading) error {
	if d.submitter == nil {
		return ErrSubmissionsDisabled
	}
	d.mu.Lock()
	ob := d.outbox
	d.mu.Unlock()
	if ob == nil {
		return ErrNotStarted
	}
	return ob.Submit(ctx, r)
}

// Readings returns raw readings from the configured source.
func (d *Dashboard) Readings(ctx context.Context) ([]SensorReading, error) {
	return d.readings.FetchReadings(ctx)
}

// Compare returns the day-to-day comparison for two YYYY-MM-DD dates.
func (d *Dashboard) Compare(ctx context.Context, date1, date2 string) (*DayComparison, error) {
	return d.compare.CompareDayToDay(ctx, date1, date2)
}

// Handler returns the dashboard HTTP surface without starting a server.
func (d *Dashboard) Handler() http.Handler {
	deps := web.Deps{
		Latest:       d.bc.Latest,
		Subscribe:    func(n int) web.Subscription { return d.bc.Subscribe(n) },
		Readings:     d.readings,
		Compare:      d.compare,
		Obs:          d.obs,
		Metrics:      d.metrics,
		StreamBuffer: d.cfg.Poller.SubscriberBuffer,
	}
	if d.submitter != nil {
		deps.Submit = d.Submit
	}
	return web.NewRouter(deps)
}

// Addr reports the HTTP listen address once started.
func (d *Dashboard) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}
