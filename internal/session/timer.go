package session

import (
	"time"
)

// advanceTimer is a cancellable deferred transition. It wraps the timer in
// an explicit handle so reset or teardown can stop a pending auto-advance
// before it mutates a session that has moved on.
type advanceTimer struct {
	timer *time.Timer
	done  chan struct{}
}

// armTimer schedules fn after d. The returned handle reports completion via
// Done: the channel is closed after fn ran, or immediately on cancel.
func armTimer(d time.Duration, fn func()) *advanceTimer {
	t := &advanceTimer{done: make(chan struct{})}
	t.timer = time.AfterFunc(d, func() {
		fn()
		close(t.done)
	})

	return t
}

// Cancel stops the timer. When the callback already fired Cancel is a no-op.
func (t *advanceTimer) Cancel() {
	if t == nil {
		return
	}
	if t.timer.Stop() {
		close(t.done)
	}
}

// Done is closed once the deferred transition ran or was cancelled.
func (t *advanceTimer) Done() <-chan struct{} {
	if t == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	return t.done
}
