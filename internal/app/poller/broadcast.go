package poller

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const (
	metricPublished       = "citypulse_stats_published_total"
	metricSubscriberDrops = "citypulse_subscriber_drops_total"
	gaugeSubscribers      = "citypulse_subscribers"
)

// Broadcaster fans each published StatsRecord out to the subscriptions that
// are attached at publish time. There is no history: a late subscriber only
// sees what is published after it attached.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	latest *domain.StatsRecord
	closed bool
	obs    ports.Observability
}

// Subscription is a live view of the broadcast stream.
type Subscription struct {
	id string
	ch chan domain.StatsRecord
	b  *Broadcaster
}

func NewBroadcaster(obs ports.Observability) *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]*Subscription),
		obs:  obs,
	}
}

// Subscribe attaches a new subscriber. buffer is how many records may pile up
// before further records are dropped for this subscriber only.
func (b *Broadcaster) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{
		id: uuid.NewString(),
		ch: make(chan domain.StatsRecord, buffer),
		b:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	b.setSubscriberGaugeLocked()
	return s
}

// Publish delivers rec to every current subscriber without blocking. Holding
// the lock across the fan-out keeps every subscriber's view in publish order.
func (b *Broadcaster) Publish(rec domain.StatsRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	latest := rec
	b.latest = &latest

	var dropped int
	for _, s := range b.subs {
		select {
		case s.ch <- rec:
		default:
			dropped++
		}
	}

	b.inc(metricPublished, 1)
	if dropped > 0 {
		b.inc(metricSubscriberDrops, float64(dropped))
	}
}

// Latest returns the most recently published record.
func (b *Broadcaster) Latest() (domain.StatsRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return domain.StatsRecord{}, false
	}
	return *b.latest, true
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches every subscriber and ignores later publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
	b.setSubscriberGaugeLocked()
}

func (b *Broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.subs[s.id]; ok && cur == s {
		delete(b.subs, s.id)
		close(s.ch)
		b.setSubscriberGaugeLocked()
	}
}

func (b *Broadcaster) setSubscriberGaugeLocked() {
	if b.obs != nil {
		b.obs.SetGauge(gaugeSubscribers, float64(len(b.subs)))
	}
}

func (b *Broadcaster) inc(name string, v float64) {
	if b.obs != nil {
		b.obs.IncCounter(name, v)
	}
}

func (s *Subscription) ID() string { return s.id }

// C is closed once the subscription is detached.
func (s *Subscription) C() <-chan domain.StatsRecord { return s.ch }

// Unsubscribe detaches the subscriber; calling it again is a no-op.
func (s *Subscription) Unsubscribe() { s.b.remove(s) }
