package frames

import (
	"context"
	"sync/atomic"
	"time"
)

// QueueStats reports queue counters.
type QueueStats struct {
	Enqueued uint64
	Dropped  uint64
	Dequeued uint64
	Depth    int
	Capacity int
}

// Queue is a bounded single-producer single-consumer frame queue.
// When full, TryPush drops the incoming frame and keeps what is queued.
type Queue struct {
	ch       chan *Frame
	enqueued atomic.Uint64
	dropped  atomic.Uint64
	dequeued atomic.Uint64
}

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan *Frame, capacity)}
}

// TryPush enqueues without blocking. It returns false when the frame was dropped.
func (q *Queue) TryPush(f *Frame) bool {
	select {
	case q.ch <- f:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop waits up to timeout for a frame. It returns false on timeout or when
// ctx is done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Frame, bool) {
	// Fast path avoids allocating a timer when frames are waiting
	select {
	case f := <-q.ch:
		q.dequeued.Add(1)
		return f, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-q.ch:
		q.dequeued.Add(1)
		return f, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Drain discards queued frames and returns how many were discarded.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued frames.
func (q *Queue) Len() int { return len(q.ch) }

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued: q.enqueued.Load(),
		Dropped:  q.dropped.Load(),
		Dequeued: q.dequeued.Load(),
		Depth:    len(q.ch),
		Capacity: cap(q.ch),
	}
}
