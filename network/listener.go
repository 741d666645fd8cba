package network

import (
	"context"
	"sync"
)

// acceptQueue hands clients accepted by a background loop to Accept callers,
// which keeps Accept cancellable by context.
type acceptQueue struct {
	clients chan Client
	closed  chan struct{}
	once    sync.Once
}

func newAcceptQueue() *acceptQueue {
	return &acceptQueue{
		clients: make(chan Client),
		closed:  make(chan struct{}),
	}
}

func (q *acceptQueue) offer(c Client) bool {
	select {
	case q.clients <- c:
		return true
	case <-q.closed:
		c.Close()
		return false
	}
}

func (q *acceptQueue) accept(ctx context.Context) (Client, error) {
	select {
	case c := <-q.clients:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, ErrListenerClosed
	}
}

func (q *acceptQueue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *acceptQueue) close(f func() error) error {
	var err error
	q.once.Do(func() {
		close(q.closed)
		err = f()
	})
	return err
}
