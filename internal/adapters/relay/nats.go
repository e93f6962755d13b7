// Package relay rebroadcasts published stats to other processes.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const DefaultSubject = "citypulse.stats"

const closeFlushTimeout = 5 * time.Second

// publisher is the slice of *nats.Conn the relay needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// flushCloser is the slice of *nats.Conn needed to shut down without losing
// buffered publishes.
type flushCloser interface {
	FlushTimeout(timeout time.Duration) error
	Close()
}

// shutdown flushes buffered publishes to the server before closing conn.
// Drain is not used: it returns before draining completes.
func shutdown(conn flushCloser, timeout time.Duration) error {
	err := conn.FlushTimeout(timeout)
	conn.Close()
	if err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// NATSRelay publishes each StatsRecord as JSON on a core NATS subject. There
// is no persistence: consumers that are not connected miss records.
type NATSRelay struct {
	pub     publisher
	subject string
	closeFn func() error
}

// ConnectNATS dials url and returns a relay that owns the connection.
func ConnectNATS(url, subject string, obs ports.Observability) (*NATSRelay, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("citypulse"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil && obs != nil {
				obs.LogError("nats_disconnected", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if obs != nil {
				obs.LogInfo("nats_reconnected", ports.Field{Key: "url", Value: c.ConnectedUrl()})
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	r := newRelay(nc, subject)
	r.closeFn = func() error { return shutdown(nc, closeFlushTimeout) }
	return r, nil
}

func newRelay(pub publisher, subject string) *NATSRelay {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSRelay{pub: pub, subject: subject}
}

func (r *NATSRelay) Name() string { return "nats:" + r.subject }

func (r *NATSRelay) WriteStats(ctx context.Context, rec domain.StatsRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := r.pub.Publish(r.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", r.subject, err)
	}
	return nil
}

// Close flushes and closes the connection opened by ConnectNATS.
func (r *NATSRelay) Close() error {
	if r.closeFn == nil {
		return nil
	}
	fn := r.closeFn
	r.closeFn = nil
	return fn()
}

var (
	_ ports.StatsSink = (*NATSRelay)(nil)
	_ publisher       = (*nats.Conn)(nil)
	_ flushCloser     = (*nats.Conn)(nil)
)
