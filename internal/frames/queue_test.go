package frames

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue(2)

	for i := uint64(1); i <= 4; i++ {
		q.TryPush(&Frame{Seq: i})
	}

	stats := q.Stats()
	if stats.Enqueued != 2 || stats.Dropped != 2 {
		t.Errorf("expected 2 enqueued and 2 dropped, got %+v", stats)
	}

	// Oldest frames survive
	for _, want := range []uint64{1, 2} {
		f, ok := q.Pop(context.Background(), 10*time.Millisecond)
		if !ok {
			t.Fatalf("expected frame %d", want)
		}
		if f.Seq != want {
			t.Errorf("expected seq %d, got %d", want, f.Seq)
		}
	}
}

func TestQueuePopTimeout(t *testing.T) {
	q := NewQueue(1)

	start := time.Now()
	if _, ok := q.Pop(context.Background(), 20*time.Millisecond); ok {
		t.Fatal("expected timeout on empty queue")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Pop returned before timeout")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if _, ok := q.Pop(ctx, time.Second); ok {
		t.Fatal("expected no frame from cancelled pop")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Pop did not return promptly on cancellation")
	}
}

func TestQueueBackpressureAccounting(t *testing.T) {
	const capacity = 5
	const produced = 500
	q := NewQueue(capacity)

	var consumed int
	var maxDepth int
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if _, ok := q.Pop(ctx, 5*time.Millisecond); ok {
				consumed++
				time.Sleep(time.Millisecond)
				continue
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	for i := range produced {
		q.TryPush(&Frame{Seq: uint64(i)})
		if d := q.Len(); d > maxDepth {
			maxDepth = d
		}
	}
	cancel()
	wg.Wait()

	stats := q.Stats()
	if maxDepth > capacity {
		t.Errorf("queue depth %d exceeded capacity %d", maxDepth, capacity)
	}
	if stats.Enqueued+stats.Dropped != produced {
		t.Errorf("enqueued+dropped = %d, want %d", stats.Enqueued+stats.Dropped, produced)
	}
	drops := int(produced) - consumed - stats.Depth
	if drops < 0 || uint64(drops) != stats.Dropped {
		t.Errorf("expected drops %d to match counter %d", drops, stats.Dropped)
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(3)
	q.TryPush(&Frame{Seq: 1})
	q.TryPush(&Frame{Seq: 2})

	if n := q.Drain(); n != 2 {
		t.Errorf("expected 2 drained, got %d", n)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestSlotKeepsLatest(t *testing.T) {
	var s Slot
	if _, ok := s.Get(); ok {
		t.Fatal("expected empty slot")
	}

	s.Set(&Frame{Seq: 1})
	s.Set(&Frame{Seq: 2})

	f, ok := s.Get()
	if !ok || f.Seq != 2 {
		t.Errorf("expected latest seq 2, got %+v", f)
	}
	if s.Updated().IsZero() {
		t.Error("expected update time to be set")
	}
}
