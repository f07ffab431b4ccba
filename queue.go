package natpmp

import (
	"context"
	"sync"
)

// Queue runs NAT-PMP operations strictly one at a time, in submission
// order, through a single worker goroutine. It is the opt-in layer for
// callers wanting the serial interaction the protocol draft recommends;
// the Client itself never queues or locks.
type Queue struct {
	items chan queueItem
	stop  chan struct{}
	once  sync.Once
}

type queueItem struct {
	ctx  context.Context
	op   func(context.Context) error
	done chan error
}

// NewQueue starts the worker. Call Close when done with it.
func NewQueue() *Queue {
	q := &Queue{
		items: make(chan queueItem),
		stop:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	for {
		select {
		case it := <-q.items:
			it.done <- it.op(it.ctx)
		case <-q.stop:
			return
		}
	}
}

// Do submits op and blocks until it has run, or until ctx is canceled
// while still waiting in line. Once op starts, Do waits for it to finish.
func (q *Queue) Do(ctx context.Context, op func(context.Context) error) error {
	it := queueItem{ctx: ctx, op: op, done: make(chan error, 1)}
	select {
	case q.items <- it:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return ErrQueueClosed
	}
	return <-it.done
}

// Close stops the worker. Operations already picked up still complete;
// queued Do calls not yet picked up return ErrQueueClosed.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.stop) })
}
