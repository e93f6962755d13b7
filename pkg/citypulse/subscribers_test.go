package citypulse

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSubscriber(t *testing.T) {
	var received []StatsRecord
	s := NewCallbackSubscriber("cb", func(rec StatsRecord) error {
		received = append(received, rec)
		return nil
	})

	if err := s.WriteStats(context.Background(), StatsRecord{Users: 7}); err != nil {
		t.Fatalf("WriteStats returned error: %v", err)
	}
	if len(received) != 1 || received[0].Users != 7 {
		t.Fatalf("unexpected records %+v", received)
	}
	if s.Name() != "cb" {
		t.Fatalf("unexpected name %s", s.Name())
	}
}

func TestNewCallbackSubscriberNilHandler(t *testing.T) {
	s := NewCallbackSubscriber("", nil)
	if err := s.WriteStats(context.Background(), StatsRecord{}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if s.Name() != "callback" {
		t.Fatalf("expected default name, got %s", s.Name())
	}
}

func TestNewChannelSubscriber(t *testing.T) {
	s, ch, closeFn := NewChannelSubscriber("chan", 0)
	defer closeFn()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.WriteStats(context.Background(), StatsRecord{Orders: 3})
	}()

	select {
	case rec := <-ch:
		if rec.Orders != 3 {
			t.Fatalf("unexpected record %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for record")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteStats returned error: %v", err)
	}

	closeFn()
	if err := s.WriteStats(context.Background(), StatsRecord{}); !errors.Is(err, ErrSubscriberClosed) {
		t.Fatalf("expected ErrSubscriberClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelSubscriberCloseUnblocksWriter(t *testing.T) {
	s, _, closeFn := NewChannelSubscriber("chan", 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.WriteStats(context.Background(), StatsRecord{})
	}()
	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubscriberClosed) {
			t.Fatalf("expected ErrSubscriberClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("writer still blocked after close")
	}
}
