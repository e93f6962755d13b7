// Package queue holds operator submissions between the WAL and the upstream
// API.
package queue

import (
	"sync"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// MemQueue is a bounded FIFO of queued readings.
type MemQueue struct {
	mu    sync.Mutex
	items []ports.QueuedReading
	limit int
}

func NewMemQueue(limit int) *MemQueue {
	if limit < 1 {
		limit = 1
	}
	return &MemQueue{
		items: make([]ports.QueuedReading, 0, limit),
		limit: limit,
	}
}

// Enqueue reports false when the queue is at its limit.
func (q *MemQueue) Enqueue(id ports.WALEntryID, r *domain.SensorReading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.limit {
		return false
	}
	q.items = append(q.items, ports.QueuedReading{ID: id, Reading: r})
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedReading {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}
	batch := make([]ports.QueuedReading, n)
	copy(batch, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return batch
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

var _ ports.ReadingQueue = (*MemQueue)(nil)
