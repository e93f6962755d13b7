package poller

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/CityPulse/internal/app/synth"
	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// DefaultInterval is the dashboard refresh period.
const DefaultInterval = 2 * time.Second

const (
	metricTicks              = "citypulse_ticks_total"
	metricSyntheticFallbacks = "citypulse_synthetic_fallbacks_total"
	metricFetchLatency       = "citypulse_source_fetch_seconds"
)

// Config holds the poller's fixed settings.
type Config struct {
	Interval   time.Duration
	APIEnabled bool
}

// Option customizes a Poller.
type Option func(*Poller)

// WithRand replaces the jitter source; fn must return values in [0, 1) and be
// safe for concurrent use.
func WithRand(fn func() float64) Option {
	return func(p *Poller) {
		if fn != nil {
			p.rnd = fn
		}
	}
}

// WithAPIEnabled overrides Config.APIEnabled.
func WithAPIEnabled(enabled bool) Option {
	return func(p *Poller) { p.apiEnabled = enabled }
}

// Poller publishes exactly one StatsRecord per tick. Ticks are not guarded
// against each other: when a slow tick is still fetching, the next one starts
// anyway, so records can reach subscribers out of tick order.
type Poller struct {
	interval   time.Duration
	apiEnabled bool
	auth       ports.Authenticator
	chain      []Strategy
	bc         *Broadcaster
	obs        ports.Observability
	rnd        func() float64

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
	ticks    atomic.Uint64
}

func New(cfg Config, auth ports.Authenticator, chain []Strategy, bc *Broadcaster, obs ports.Observability, opts ...Option) (*Poller, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if bc == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	p := &Poller{
		interval:   cfg.Interval,
		apiEnabled: cfg.APIEnabled,
		auth:       auth,
		chain:      append([]Strategy(nil), chain...),
		bc:         bc,
		obs:        obs,
		rnd:        rand.Float64,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Start launches the timer loop and returns immediately.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("poller already started")
	}
	select {
	case <-p.stopCh:
		return fmt.Errorf("poller stopped")
	default:
	}
	p.started = true

	go p.loop()
	return nil
}

// Stop cancels the timer. Ticks already fetching are left to finish and will
// still publish. Calling Stop more than once is a no-op.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

// Wait blocks until the timer loop has exited and in-flight ticks have
// published, or ctx is done.
func (p *Poller) Wait(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ticks reports how many ticks have run so far.
func (p *Poller) Ticks() uint64 { return p.ticks.Load() }

func (p *Poller) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			select {
			case <-p.stopCh:
				return
			default:
			}
			p.inflight.Add(1)
			go func() {
				defer p.inflight.Done()
				p.Tick(context.Background())
			}()
		}
	}
}

// Tick runs one pass of the fallback chain and publishes the result. The
// fetches are detached from ctx's cancellation: once a tick has begun it
// always publishes.
func (p *Poller) Tick(ctx context.Context) domain.StatsRecord {
	n := p.ticks.Add(1)
	p.obs.IncCounter(metricTicks, 1)

	rec := p.produce(context.WithoutCancel(ctx), n)
	p.bc.Publish(rec)
	return rec
}

func (p *Poller) produce(ctx context.Context, tick uint64) domain.StatsRecord {
	if !p.apiEnabled || !p.auth.IsAuthenticated() {
		p.obs.IncCounter(metricSyntheticFallbacks, 1)
		return synth.Simulated(p.rnd)
	}

	for _, s := range p.chain {
		start := time.Now()
		rec, err := attempt(ctx, s)
		p.obs.ObserveLatency(metricFetchLatency, time.Since(start).Seconds(), s.Name)
		if err == nil {
			return rec
		}

		p.obs.IncCounter(failureMetric(s.Name), 1)
		if !errors.Is(err, ErrEmptyStats) {
			p.obs.LogError("stats_source_failed", err,
				ports.Field{Key: "source", Value: s.Name},
				ports.Field{Key: "tick", Value: tick})
		}
	}

	p.obs.IncCounter(metricSyntheticFallbacks, 1)
	return synth.Simulated(p.rnd)
}

func failureMetric(source string) string {
	return "citypulse_" + source + "_failures_total"
}
