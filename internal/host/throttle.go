package host

import "time"

// Throttle limits fn to one call per limit on the loop clock. A call inside the
// window replaces any pending trailing call, which then fires once the window
// closes, so the last request is never lost.
type Throttle struct {
	loop    *Loop
	limit   time.Duration
	fn      func()
	lastRan time.Time
	ran     bool
	pending TimerID
	armed   bool
}

// NewThrottle wraps fn.
func NewThrottle(loop *Loop, limit time.Duration, fn func()) *Throttle {
	return &Throttle{loop: loop, limit: limit, fn: fn}
}

// Call runs fn now or arms the trailing call.
func (t *Throttle) Call() {
	now := t.loop.Now()
	if !t.ran || now.Sub(t.lastRan) >= t.limit {
		t.fire()
		return
	}
	if t.armed {
		t.loop.CancelTimer(t.pending)
	}
	wait := t.limit - now.Sub(t.lastRan)
	t.pending = t.loop.AfterFunc(wait, func() {
		t.armed = false
		t.fire()
	})
	t.armed = true
}

func (t *Throttle) fire() {
	t.fn()
	t.lastRan = t.loop.Now()
	t.ran = true
}
