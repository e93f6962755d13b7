package poller

import (
	"testing"

	"github.com/ghalamif/CityPulse/internal/domain"
)

func TestBroadcasterNoReplayForLateSubscribers(t *testing.T) {
	bc := NewBroadcaster(newStubObs())

	bc.Publish(domain.StatsRecord{Users: 1})
	sub := bc.Subscribe(4)
	bc.Publish(domain.StatsRecord{Users: 2})

	if rec := receive(t, sub); rec.Users != 2 {
		t.Fatalf("late subscriber should only see later records, got %+v", rec)
	}
	select {
	case rec := <-sub.C():
		t.Fatalf("unexpected extra record %+v", rec)
	default:
	}
}

func TestBroadcasterFanOutInOrder(t *testing.T) {
	bc := NewBroadcaster(newStubObs())
	a := bc.Subscribe(8)
	b := bc.Subscribe(8)

	for i := 1; i <= 3; i++ {
		bc.Publish(domain.StatsRecord{Orders: float64(i)})
	}

	for _, sub := range []*Subscription{a, b} {
		for i := 1; i <= 3; i++ {
			if rec := receive(t, sub); rec.Orders != float64(i) {
				t.Fatalf("subscriber %s: expected orders %d, got %v", sub.ID(), i, rec.Orders)
			}
		}
	}
	if a.ID() == b.ID() {
		t.Fatalf("subscriptions must have distinct ids")
	}
}

func TestBroadcasterUnsubscribeIsolated(t *testing.T) {
	obs := newStubObs()
	bc := NewBroadcaster(obs)
	a := bc.Subscribe(2)
	b := bc.Subscribe(2)
	if obs.gauge(gaugeSubscribers) != 2 {
		t.Fatalf("expected subscriber gauge 2, got %v", obs.gauge(gaugeSubscribers))
	}

	a.Unsubscribe()
	a.Unsubscribe()
	bc.Publish(domain.StatsRecord{Users: 7})

	if _, ok := <-a.C(); ok {
		t.Fatalf("expected detached subscription channel to be closed")
	}
	if rec := receive(t, b); rec.Users != 7 {
		t.Fatalf("remaining subscriber should still receive, got %+v", rec)
	}
	if bc.Len() != 1 || obs.gauge(gaugeSubscribers) != 1 {
		t.Fatalf("expected one subscriber left")
	}
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	obs := newStubObs()
	bc := NewBroadcaster(obs)
	slow := bc.Subscribe(1)
	fast := bc.Subscribe(4)

	bc.Publish(domain.StatsRecord{Users: 1})
	bc.Publish(domain.StatsRecord{Users: 2})

	if rec := receive(t, slow); rec.Users != 1 {
		t.Fatalf("slow subscriber should keep the first record, got %+v", rec)
	}
	if receive(t, fast).Users != 1 || receive(t, fast).Users != 2 {
		t.Fatalf("fast subscriber should receive both records")
	}
	if obs.counter(metricSubscriberDrops) != 1 {
		t.Fatalf("expected one drop, got %v", obs.counter(metricSubscriberDrops))
	}
	if obs.counter(metricPublished) != 2 {
		t.Fatalf("expected two publishes, got %v", obs.counter(metricPublished))
	}
}

func TestBroadcasterLatestAndClose(t *testing.T) {
	bc := NewBroadcaster(newStubObs())
	if _, ok := bc.Latest(); ok {
		t.Fatalf("expected no latest record before first publish")
	}

	sub := bc.Subscribe(1)
	bc.Publish(domain.StatsRecord{Revenue: 10})
	if rec, ok := bc.Latest(); !ok || rec.Revenue != 10 {
		t.Fatalf("unexpected latest record %+v", rec)
	}

	bc.Close()
	bc.Close()
	bc.Publish(domain.StatsRecord{Revenue: 20})
	if rec, _ := bc.Latest(); rec.Revenue != 10 {
		t.Fatalf("publish after close must be ignored")
	}

	<-sub.C()
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected subscription to be closed")
	}
	late := bc.Subscribe(1)
	if _, ok := <-late.C(); ok {
		t.Fatalf("subscribing after close should yield a closed channel")
	}
	sub.Unsubscribe()
}
