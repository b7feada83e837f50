package prompt

import (
	"context"
	"errors"
	"sync"

	appLog "calnorm/internal/log"
)

// ErrStale is returned when an answer refers to a request that is no longer
// pending.
var ErrStale = errors.New("no pending prompt with this id")

// Channel is an explicit request/response handshake between the engine and
// a front-end running on other goroutines (the HTTP server). It holds at
// most one pending request.
//
// The engine calls Ask, which publishes the request and blocks. The
// front-end reads Pending and completes it with Respond or Abandon.
type Channel struct {
	mu      sync.Mutex
	pending *pendingPrompt
	closed  bool

	// notify is signalled whenever a new request becomes pending.
	notify chan struct{}
}

type pendingPrompt struct {
	req    Request
	result chan answer
	once   sync.Once
}

type answer struct {
	resp Response
	err  error
}

// complete delivers the first answer only; later calls are ignored.
func (p *pendingPrompt) complete(a answer) bool {
	delivered := false
	p.once.Do(func() {
		p.result <- a
		delivered = true
	})
	return delivered
}

func NewChannel() *Channel {
	return &Channel{notify: make(chan struct{}, 1)}
}

// Ask publishes req and waits for Respond, Abandon, Close or ctx.
func (c *Channel) Ask(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, ErrClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return Response{}, ErrBusy
	}
	p := &pendingPrompt{req: req, result: make(chan answer, 1)}
	c.pending = p
	c.mu.Unlock()

	defer c.clear(p)

	select {
	case c.notify <- struct{}{}:
	default:
	}
	appLog.Debug("prompt pending", "id", req.ID, "kind", req.Kind, "key", req.Key)

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case a := <-p.result:
		return a.resp, a.err
	}
}

func (c *Channel) clear(p *pendingPrompt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == p {
		c.pending = nil
	}
}

// Pending returns the live request, if any.
func (c *Channel) Pending() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Request{}, false
	}
	return c.pending.req, true
}

// Notify returns a channel that receives a value when a new request becomes
// pending. Only one notification is buffered.
func (c *Channel) Notify() <-chan struct{} {
	return c.notify
}

// Respond answers the pending request with the given id.
func (c *Channel) Respond(id string, values [2]string) error {
	return c.finish(id, answer{resp: Response{Values: values}})
}

// Abandon dismisses the pending request with the given id.
func (c *Channel) Abandon(id string) error {
	return c.finish(id, answer{err: ErrAbandoned})
}

func (c *Channel) finish(id string, a answer) error {
	c.mu.Lock()
	p := c.pending
	c.mu.Unlock()

	if p == nil || p.req.ID != id {
		return ErrStale
	}
	if !p.complete(a) {
		return ErrStale
	}
	return nil
}

// Close abandons the live request and rejects all future ones.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	p := c.pending
	c.mu.Unlock()

	if p != nil {
		p.complete(answer{err: ErrAbandoned})
	}
}
