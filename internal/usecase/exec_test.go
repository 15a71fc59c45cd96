package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCPUPool_BoundsParallelism(t *testing.T) {
	pool := NewCPUPool(2)
	var active, peak int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("peak parallelism %d, want at most 2", p)
	}
}

func TestCPUPool_ContextCancel(t *testing.T) {
	pool := NewCPUPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go pool.Do(context.Background(), func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Do(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	close(release)
}

func TestSerialQueue_NeverOverlaps(t *testing.T) {
	q := NewSerialQueue()
	defer q.Close()

	var active, ran int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func() error {
				if atomic.AddInt32(&active, 1) != 1 {
					t.Error("two tasks ran concurrently on the serial queue")
				}
				time.Sleep(100 * time.Microsecond)
				atomic.AddInt32(&active, -1)
				atomic.AddInt32(&ran, 1)
				return nil
			})
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&ran); n != 32 {
		t.Fatalf("ran %d tasks, want 32", n)
	}
}

func TestSerialQueue_PropagatesError(t *testing.T) {
	q := NewSerialQueue()
	defer q.Close()

	want := errors.New("boom")
	if err := q.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
	// The queue must stay usable after a task error.
	if err := q.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("queue unusable after error: %v", err)
	}
}

func TestGate(t *testing.T) {
	g := NewGate(1)
	if err := g.Enter(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Enter(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error while the gate is full, got %v", err)
	}

	g.Leave()
	if err := g.Enter(context.Background()); err != nil {
		t.Errorf("gate must admit after Leave: %v", err)
	}
	g.Leave()
}
