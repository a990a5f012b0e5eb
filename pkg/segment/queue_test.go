package segment

import (
	"context"
	"testing"
	"time"
)

func segAt(ms int) Segment {
	return Segment{Start: time.Duration(ms) * time.Millisecond}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(10)
	q.Push(segAt(1))
	q.Push(segAt(2))

	ctx := context.Background()
	first, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	second, _ := q.Pop(ctx)
	if first.Start >= second.Start {
		t.Errorf("pop order not FIFO: %v then %v", first.Start, second.Start)
	}
}

func TestQueue_DropOldestOnOverflow(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 12; i++ {
		q.Push(segAt(i))
	}
	if got := q.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
	seg, _ := q.Pop(context.Background())
	if seg.Start != 2*time.Millisecond {
		t.Errorf("head = %v, want the third pushed segment after two drops", seg.Start)
	}
}

func TestQueue_EmergencyLaneSkipsBacklog(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		q.Push(segAt(i))
	}
	q.Push(Segment{Start: 99 * time.Millisecond, Emergency: true})

	seg, err := q.Pop(context.Background())
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if !seg.Emergency {
		t.Errorf("expected emergency segment first, got Start=%v", seg.Start)
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue(10)
	done := make(chan Segment, 1)
	go func() {
		seg, _ := q.Pop(context.Background())
		done <- seg
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(segAt(7))

	select {
	case seg := <-done:
		if seg.Start != 7*time.Millisecond {
			t.Errorf("got %v, want pushed segment", seg.Start)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestQueue_PopHonorsContext(t *testing.T) {
	q := NewQueue(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(ctx); err == nil {
		t.Fatal("expected context error from Pop on empty queue")
	}
}

func TestQueue_MinimumCapacityEnforced(t *testing.T) {
	q := NewQueue(1)
	for i := 0; i < 10; i++ {
		q.Push(segAt(i))
	}
	if got := q.Dropped(); got != 0 {
		t.Errorf("Dropped = %d, want 0 with the raised minimum capacity", got)
	}
}
