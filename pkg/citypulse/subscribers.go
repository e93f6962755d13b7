package citypulse

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSubscriberClosed is returned when a channel subscriber is written to
// after being closed.
var ErrSubscriberClosed = errors.New("citypulse: subscriber closed")

// StatsHandler is invoked with every published record.
type StatsHandler func(StatsRecord) error

// NewCallbackSubscriber adapts a function into a StatsSink so callers can
// plug arbitrary handlers without defining structs.
func NewCallbackSubscriber(name string, fn StatsHandler) StatsSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSubscriber{name: name, fn: fn}
}

// NewChannelSubscriber exposes records via a channel; it returns the sink,
// the read-only channel, and a close function the caller should invoke
// during shutdown. A full channel blocks the writer until the record is
// taken or the write context ends.
func NewChannelSubscriber(name string, buffer int) (StatsSink, <-chan StatsRecord, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	s := &channelSubscriber{
		name:   name,
		ch:     make(chan StatsRecord, buffer),
		closed: make(chan struct{}),
	}
	return s, s.ch, s.close
}

type callbackSubscriber struct {
	name string
	fn   StatsHandler
}

func (s *callbackSubscriber) WriteStats(_ context.Context, rec StatsRecord) error {
	if s.fn == nil {
		return fmt.Errorf("callback subscriber %q: nil handler", s.name)
	}
	return s.fn(rec)
}

func (s *callbackSubscriber) Name() string { return s.name }

type channelSubscriber struct {
	name   string
	ch     chan StatsRecord
	closed chan struct{}
	// writers hold mu shared while sending; close takes it exclusively
	// before closing ch.
	mu   sync.RWMutex
	once sync.Once
}

func (s *channelSubscriber) WriteStats(ctx context.Context, rec StatsRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrSubscriberClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrSubscriberClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- rec:
		return nil
	}
}

func (s *channelSubscriber) Name() string { return s.name }

func (s *channelSubscriber) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
