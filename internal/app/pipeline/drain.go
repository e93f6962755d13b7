package pipeline

import (
	"time"

	"github.com/ghalamif/CityPulse/internal/ports"
)

func (o *Outbox) drain() {
	defer close(o.done)
	for {
		if o.ctx.Err() != nil {
			return
		}

		batch := o.pending
		o.setPending(nil)
		if len(batch) == 0 {
			batch = o.q.DequeueBatch(o.pol.MaxBatchSize)
		}
		if len(batch) == 0 {
			o.compactIfIdle()
			if !o.sleep() {
				return
			}
			continue
		}

		if rest := o.deliver(batch); len(rest) > 0 {
			o.setPending(rest)
			o.reportGauges()
			if !o.sleep() {
				return
			}
			continue
		}
		o.reportGauges()
	}
}

// deliver forwards batch in order and returns the suffix that must be retried.
// Everything before it is committed.
func (o *Outbox) deliver(batch []ports.QueuedReading) []ports.QueuedReading {
	var done ports.WALEntryID
	for i, item := range batch {
		start := time.Now()
		err := o.up.SubmitReading(o.ctx, *item.Reading)
		switch {
		case err == nil:
			o.obs.ObserveLatency(metricSubmitLatency, time.Since(start).Seconds())
			o.obs.IncCounter(metricSubmitted, 1)
		case o.permanent(err):
			o.obs.RecordDLQ(item.ID, item.Reading, err)
		default:
			if o.ctx.Err() == nil {
				o.obs.LogError("outbox_submit_failed", err,
					ports.Field{Key: "entry", Value: uint64(item.ID)},
					ports.Field{Key: "sensor", Value: item.Reading.SensorID},
				)
			}
			o.commit(done)
			return batch[i:]
		}
		done = item.ID
	}
	o.commit(done)
	return nil
}

func (o *Outbox) setPending(items []ports.QueuedReading) {
	o.pending = items
	o.backlog.Store(int64(len(items)))
}

func (o *Outbox) commit(id ports.WALEntryID) {
	if id == 0 {
		return
	}
	if err := o.wal.Commit(id); err != nil {
		o.obs.LogError("outbox_wal_commit_failed", err, ports.Field{Key: "entry", Value: uint64(id)})
	}
}

// compactIfIdle reclaims WAL space once every entry has been delivered.
func (o *Outbox) compactIfIdle() {
	c, ok := o.wal.(Compactor)
	if !ok {
		return
	}
	st := o.wal.Stats()
	if st.SizeBytes == 0 || st.LatestAppended >= st.OldestUncommitted {
		return
	}
	// Entries appended after the check are uncommitted and survive the rewrite.
	if err := c.Compact(); err != nil {
		o.obs.LogError("outbox_wal_compact_failed", err)
		return
	}
	o.reportGauges()
}

func (o *Outbox) sleep() bool {
	t := time.NewTimer(o.pol.IdleSleep)
	defer t.Stop()
	select {
	case <-o.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
