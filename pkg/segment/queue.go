package segment

import (
	"context"
	"log/slog"
	"sync"
)

// minQueueCapacity is the smallest allowed normal-lane capacity.
const minQueueCapacity = 10

// Queue hands completed segments from the segmenter worker to the
// orchestrator. The normal lane is bounded with drop-oldest on overflow; a
// priority lane of capacity 1 carries emergency-tagged segments past any
// backlog. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	normal   []Segment
	priority *Segment
	capacity int
	dropped  uint64
	notify   chan struct{}
	closed   bool
}

// NewQueue creates a Queue with the given normal-lane capacity. Capacities
// below the minimum of 10 are raised to it.
func NewQueue(capacity int) *Queue {
	if capacity < minQueueCapacity {
		capacity = minQueueCapacity
	}
	return &Queue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push enqueues a segment. Emergency segments take the priority lane,
// replacing any stale occupant. Normal segments that overflow the bounded
// lane evict the oldest entry, which is counted and logged.
func (q *Queue) Push(seg Segment) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if seg.Emergency {
		q.priority = &seg
	} else {
		if len(q.normal) >= q.capacity {
			q.normal = q.normal[1:]
			q.dropped++
			slog.Warn("segment queue overflow, dropped oldest", "dropped_total", q.dropped)
		}
		q.normal = append(q.normal, seg)
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop blocks until a segment is available or ctx is cancelled. The priority
// lane is always drained before the normal lane.
func (q *Queue) Pop(ctx context.Context) (Segment, error) {
	for {
		q.mu.Lock()
		if q.priority != nil {
			seg := *q.priority
			q.priority = nil
			q.mu.Unlock()
			return seg, nil
		}
		if len(q.normal) > 0 {
			seg := q.normal[0]
			q.normal = q.normal[1:]
			q.mu.Unlock()
			return seg, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Segment{}, context.Canceled
		}

		select {
		case <-ctx.Done():
			return Segment{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Dropped reports how many normal-lane segments have been evicted.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close wakes all blocked Pop calls. Pushing after Close is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
