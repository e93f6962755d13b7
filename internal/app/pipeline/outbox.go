// Package pipeline moves data between the dashboard core and its outer
// adapters: operator submissions out through the outbox, published stats out
// to sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const (
	PolicyBlock  = "block"
	PolicyDrop   = "drop"
	PolicyReject = "reject"
)

const (
	metricSubmitted     = "citypulse_readings_submitted_total"
	metricOutboxDropped = "citypulse_outbox_dropped_total"
	metricSubmitLatency = "citypulse_submit_latency_seconds"
	gaugeQueueLen       = "citypulse_outbox_queue_length"
	gaugeWALSize        = "citypulse_outbox_wal_size_bytes"
)

var (
	ErrQueueFull    = errors.New("outbox: queue full")
	ErrWALFull      = errors.New("outbox: wal full")
	ErrOutboxClosed = errors.New("outbox: closed")
)

// Compactor is implemented by WALs that can reclaim committed entries.
type Compactor interface {
	Compact() error
}

type OutboxOption func(*Outbox)

// WithPermanentError marks upstream errors that retrying cannot fix. Such
// readings are dead-lettered and committed; every other error is retried.
func WithPermanentError(fn func(error) bool) OutboxOption {
	return func(o *Outbox) {
		if fn != nil {
			o.permanent = fn
		}
	}
}

// Outbox persists operator readings to a WAL and forwards them upstream in
// submission order, retrying until the API accepts or rejects each one.
type Outbox struct {
	wal       ports.WAL
	q         ports.ReadingQueue
	up        ports.ReadingSubmitter
	pol       ports.Policy
	obs       ports.Observability
	permanent func(error) bool

	admitMu sync.Mutex
	// pending is owned by the drain goroutine: replayed backlog first, then
	// the batch that last failed with a retryable error.
	pending []ports.QueuedReading
	backlog atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// StartOutbox replays uncommitted WAL entries and starts the drain loop.
func StartOutbox(wal ports.WAL, q ports.ReadingQueue, up ports.ReadingSubmitter, pol ports.Policy, obs ports.Observability, opts ...OutboxOption) (*Outbox, error) {
	if wal == nil || q == nil || up == nil || obs == nil {
		return nil, fmt.Errorf("outbox: wal, queue, submitter and observability are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		wal:       wal,
		q:         q,
		up:        up,
		pol:       normalizePolicy(pol),
		obs:       obs,
		permanent: func(error) bool { return false },
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	from := wal.Stats().OldestUncommitted
	err := wal.Iterate(from, func(id ports.WALEntryID, r *domain.SensorReading) error {
		o.pending = append(o.pending, ports.QueuedReading{ID: id, Reading: r})
		return nil
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("outbox replay: %w", err)
	}
	o.backlog.Store(int64(len(o.pending)))
	if n := len(o.pending); n > 0 {
		obs.LogInfo("outbox_replay", ports.Field{Key: "entries", Value: n})
	}

	go o.drain()
	return o, nil
}

func normalizePolicy(p ports.Policy) ports.Policy {
	if p.MaxQueueLen <= 0 {
		p.MaxQueueLen = 256
	}
	if p.MaxBatchSize <= 0 {
		p.MaxBatchSize = 16
	}
	if p.IdleSleep <= 0 {
		p.IdleSleep = 500 * time.Millisecond
	}
	if p.OnWALFull == "" {
		p.OnWALFull = PolicyBlock
	}
	if p.OnQueueFull == "" {
		p.OnQueueFull = PolicyBlock
	}
	return p
}

// Submit makes r durable and queues it for delivery. A nil error means the
// reading was accepted or, under the drop policy, deliberately discarded.
func (o *Outbox) Submit(ctx context.Context, r domain.SensorReading) error {
	if o.ctx.Err() != nil {
		return ErrOutboxClosed
	}

	o.admitMu.Lock()
	defer o.admitMu.Unlock()

	if err := o.waitForRoom(ctx, o.pol.OnWALFull, ErrWALFull, o.walHasRoom); err != nil {
		return o.refuse(err)
	}
	// Room is checked before the append so a refused reading never lands in
	// the WAL. Only the drain loop removes entries, so the room stays.
	if err := o.waitForRoom(ctx, o.pol.OnQueueFull, ErrQueueFull, o.queueHasRoom); err != nil {
		return o.refuse(err)
	}

	id, err := o.wal.Append(&r)
	if err != nil {
		o.obs.LogCritical("outbox_wal_append_failed", err, ports.Field{Key: "sensor", Value: r.SensorID})
		return fmt.Errorf("outbox append: %w", err)
	}
	if !o.q.Enqueue(id, &r) {
		// Unreachable with a conforming queue; the entry is replayed on restart.
		o.obs.LogError("outbox_enqueue_failed", ErrQueueFull, ports.Field{Key: "entry", Value: uint64(id)})
	}
	o.reportGauges()
	return nil
}

func (o *Outbox) walHasRoom() bool {
	return o.pol.MaxWALSizeBytes <= 0 || o.wal.Stats().SizeBytes < o.pol.MaxWALSizeBytes
}

func (o *Outbox) queueHasRoom() bool {
	return o.q.Len() < o.pol.MaxQueueLen
}

func (o *Outbox) waitForRoom(ctx context.Context, policy string, full error, hasRoom func() bool) error {
	for !hasRoom() {
		switch policy {
		case PolicyBlock:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.ctx.Done():
				return ErrOutboxClosed
			case <-time.After(o.pol.IdleSleep):
			}
		case PolicyDrop:
			return errDropped{full}
		case PolicyReject:
			return full
		default:
			return fmt.Errorf("outbox: unknown policy %q: %w", policy, full)
		}
	}
	return nil
}

type errDropped struct{ cause error }

func (e errDropped) Error() string { return "dropped: " + e.cause.Error() }
func (e errDropped) Unwrap() error { return e.cause }

func (o *Outbox) refuse(err error) error {
	var d errDropped
	if errors.As(err, &d) {
		o.obs.IncCounter(metricOutboxDropped, 1)
		o.obs.LogError("outbox_drop", d.cause)
		return nil
	}
	return err
}

// Pending reports how many readings are waiting for delivery.
func (o *Outbox) Pending() int {
	st := o.wal.Stats()
	if st.LatestAppended < st.OldestUncommitted {
		return 0
	}
	return int(st.LatestAppended - st.OldestUncommitted + 1)
}

// Close stops the drain loop and closes the WAL. Undelivered readings stay
// in the WAL for the next start.
func (o *Outbox) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		o.cancel()
		select {
		case <-o.done:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
		err = o.wal.Close()
	})
	return err
}

func (o *Outbox) reportGauges() {
	o.obs.SetGauge(gaugeQueueLen, float64(int64(o.q.Len())+o.backlog.Load()))
	o.obs.SetGauge(gaugeWALSize, float64(o.wal.Stats().SizeBytes))
}
