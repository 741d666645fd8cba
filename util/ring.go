package util

import (
	"errors"
	"sync"
)

var ErrDisposed = errors.New("ring buffer disposed")

// RingBuffer is a bounded FIFO queue. Offer never blocks, Poll may.
type RingBuffer struct {
	sync.Mutex
	items    []any
	head     int
	count    int
	disposed bool
	signal   chan struct{}
}

func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		panic(size)
	}
	return &RingBuffer{
		items:  make([]any, size),
		signal: make(chan struct{}, 1),
	}
}

// Offer appends item and reports false without error when the buffer is full.
func (rb *RingBuffer) Offer(item any) (bool, error) {
	rb.Lock()
	defer rb.Unlock()

	if rb.disposed {
		return false, ErrDisposed
	}
	if rb.count == len(rb.items) {
		return false, nil
	}
	rb.items[(rb.head+rb.count)%len(rb.items)] = item
	rb.count++
	select {
	case rb.signal <- struct{}{}:
	default:
	}
	return true, nil
}

// Poll removes the oldest item. A nil item with nil error means the buffer
// was empty and block was false.
func (rb *RingBuffer) Poll(block bool) (any, error) {
	for {
		item, err := rb.poll()
		if err != nil || item != nil || !block {
			return item, err
		}
		<-rb.signal
	}
}

func (rb *RingBuffer) poll() (any, error) {
	rb.Lock()
	defer rb.Unlock()

	if rb.disposed {
		return nil, ErrDisposed
	}
	if rb.count == 0 {
		return nil, nil
	}
	item := rb.items[rb.head]
	rb.items[rb.head] = nil
	rb.head = (rb.head + 1) % len(rb.items)
	rb.count--
	if rb.count == 0 {
		rb.drain()
	}
	return item, nil
}

func (rb *RingBuffer) drain() {
	select {
	case <-rb.signal:
	default:
	}
}

// Signal fires while items are pending and is closed on Dispose.
func (rb *RingBuffer) Signal() <-chan struct{} {
	return rb.signal
}

func (rb *RingBuffer) Len() int {
	rb.Lock()
	defer rb.Unlock()

	return rb.count
}

func (rb *RingBuffer) Dispose() {
	rb.Lock()
	defer rb.Unlock()

	if rb.disposed {
		return
	}
	rb.disposed = true
	rb.items = nil
	rb.count = 0
	rb.drain()
	close(rb.signal)
}
