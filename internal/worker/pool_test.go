package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p1 := NewPool[int](5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool[int](0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool[int](-1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_ResultsInTaskOrder(t *testing.T) {
	var executed int32
	count := 10

	tasks := make([]Task[int], count)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			atomic.AddInt32(&executed, 1)
			// later tasks finish first
			time.Sleep(time.Duration(count-i) * time.Millisecond)
			return i * i, nil
		}
	}

	results := NewPool[int](3).Run(context.Background(), tasks)

	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed tasks, got %d", count, executed)
	}
	for i, r := range results {
		if r.Index != i || r.Value != i*i || r.Err != nil {
			t.Errorf("result %d: unexpected %+v", i, r)
		}
	}
}

func TestPool_Concurrency(t *testing.T) {
	var inFlight, peak int32

	tasks := make([]Task[struct{}], 6)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return struct{}{}, nil
		}
	}

	NewPool[struct{}](2).Run(context.Background(), tasks)

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent tasks, saw %d", peak)
	}
	if peak < 2 {
		t.Errorf("expected tasks to overlap, peak was %d", peak)
	}
}

func TestPool_Errors(t *testing.T) {
	boom := errors.New("task error")
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) { return "ok", nil },
		func(ctx context.Context) (string, error) { return "", boom },
	}

	results := NewPool[string](2).Run(context.Background(), tasks)

	if results[0].Err != nil || results[0].Value != "ok" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("expected task error, got %v", results[1].Err)
	}
}

func TestPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	tasks := make([]Task[int], 4)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			atomic.AddInt32(&executed, 1)
			return 1, nil
		}
	}

	results := NewPool[int](2).Run(ctx, tasks)

	if executed != 0 {
		t.Errorf("expected no tasks to run, got %d", executed)
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", r.Err)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	results := NewPool[int](4).Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
