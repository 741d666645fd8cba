package util

import "time"

// Timer is a time.Timer that can be Reset without knowing whether its
// channel was already received from.
type Timer struct {
	impl  *time.Timer
	fired bool
}

func NewTimer(d time.Duration) *Timer {
	return &Timer{impl: time.NewTimer(d)}
}

func (t *Timer) C() <-chan time.Time {
	return t.impl.C
}

// Fired must be called after a value was received from C.
func (t *Timer) Fired() {
	t.fired = true
}

func (t *Timer) Stop() {
	if !t.impl.Stop() && !t.fired {
		select {
		case <-t.impl.C:
		default:
		}
	}
	t.fired = true
}

func (t *Timer) Reset(d time.Duration) {
	t.Stop()
	t.impl.Reset(d)
	t.fired = false
}
