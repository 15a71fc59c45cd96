package usecase

import "context"

// The pipeline deliberately keeps three separate scheduling facilities:
// a bounded pool for parallel stateless work, a strictly serial queue
// for everything that mutates model state, and an admission gate
// bounding how many file rollouts are in flight. They are never merged;
// the serial queue is what makes replay-buffer and optimizer mutation
// race-free without locks.

// CPUPool bounds the parallelism of stateless CPU-bound tasks. Tasks run
// on the calling goroutine once a slot is acquired, so inputs are
// naturally confined to the task closure.
type CPUPool struct {
	slots chan struct{}
}

func NewCPUPool(n int) *CPUPool {
	if n < 1 {
		n = 1
	}
	return &CPUPool{slots: make(chan struct{}, n)}
}

func (p *CPUPool) Do(ctx context.Context, f func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	return f()
}

// SerialQueue executes all submitted tasks on a single dedicated
// goroutine, in submission order. Close waits for queued tasks to drain.
type SerialQueue struct {
	tasks chan func()
	done  chan struct{}
}

func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for task := range q.tasks {
			task()
		}
	}()
	return q
}

// Do runs f on the queue goroutine and waits for it to finish.
func (q *SerialQueue) Do(ctx context.Context, f func() error) error {
	errc := make(chan error, 1)
	task := func() { errc <- f() }
	select {
	case q.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		// The task is already running; its result must still be
		// consumed to keep the queue goroutine unblocked.
		<-errc
		return ctx.Err()
	}
}

func (q *SerialQueue) Close() {
	close(q.tasks)
	<-q.done
}

// Gate is a counting admission semaphore bounding in-flight rollouts.
// It bounds concurrency only; it makes no ordering promises.
type Gate struct {
	slots chan struct{}
}

func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{slots: make(chan struct{}, n)}
}

func (g *Gate) Enter(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Leave() { <-g.slots }
