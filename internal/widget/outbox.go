package widget

import (
	"context"
	"sync"
)

// job is one outbound call.
type job func(ctx context.Context)

// outbox runs outbound calls one at a time in submission order on its own
// goroutine. Submitting never blocks, so it is safe with the widget locked.
// Only calls whose order matters go here: a message send and the typing
// publishes around it.
type outbox struct {
	mu      sync.Mutex
	queue   []job
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	running bool
}

func newOutbox() *outbox {
	return &outbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// start runs the loop until close. Jobs receive ctx.
func (o *outbox) start(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.mu.Unlock()
	go o.loop(ctx)
}

// enqueue adds fn to the queue. It reports false after close.
func (o *outbox) enqueue(fn job) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, fn)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true
}

func (o *outbox) dequeue() (job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return nil, false
	}
	fn := o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]
	return fn, true
}

func (o *outbox) loop(ctx context.Context) {
	defer close(o.done)
	for {
		for {
			fn, ok := o.dequeue()
			if !ok {
				break
			}
			fn(ctx)
		}

		o.mu.Lock()
		closed := o.closed && len(o.queue) == 0
		o.mu.Unlock()
		if closed {
			return
		}
		<-o.wake
	}
}

// flush waits until every job submitted before the call has run.
func (o *outbox) flush(ctx context.Context) error {
	reached := make(chan struct{})
	if !o.enqueue(func(context.Context) { close(reached) }) {
		return nil
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting jobs, lets queued ones finish and waits for the loop.
func (o *outbox) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		if o.running {
			<-o.done
		}
		return
	}
	o.closed = true
	running := o.running
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	if running {
		<-o.done
	}
}

// calls runs outbound calls that do not depend on each other, each on its
// own goroutine, and tracks them so they can be awaited.
type calls struct {
	mu     sync.Mutex
	ctx    context.Context
	n      int
	idle   chan struct{}
	closed bool
}

// start binds the context passed to every call.
func (c *calls) start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
}

// do runs fn in the background. It reports false before start or after
// close.
func (c *calls) do(fn job) bool {
	c.mu.Lock()
	if c.closed || c.ctx == nil {
		c.mu.Unlock()
		return false
	}
	c.n++
	ctx := c.ctx
	c.mu.Unlock()

	go func() {
		defer c.done()
		fn(ctx)
	}()
	return true
}

func (c *calls) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	if c.n == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// wait blocks until no call is in flight.
func (c *calls) wait(ctx context.Context) error {
	c.mu.Lock()
	if c.n == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close refuses new calls and waits for running ones.
func (c *calls) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	_ = c.wait(context.Background())
}
