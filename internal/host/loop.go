package host

import (
	"container/heap"
	"time"
)

// FrameID identifies a pending frame callback.
type FrameID uint64

// TimerID identifies a pending delayed callback.
type TimerID uint64

type frameRequest struct {
	id FrameID
	fn func()
}

type timer struct {
	id    TimerID
	due   time.Time
	seq   uint64
	fn    func()
	index int
}

// timerQueue is a min-heap ordered by due time, then scheduling order.
type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Loop is a single-threaded stand-in for a browser event loop. Callers drive it
// by calling Step once per rendered frame; every callback runs inside Step on
// the caller's goroutine, so state touched only from callbacks needs no locks.
//
// Loop is not safe for concurrent use.
type Loop struct {
	now time.Time

	nextFrame FrameID
	frames    []frameRequest

	nextTimer TimerID
	seq       uint64
	timers    timerQueue
	byID      map[TimerID]*timer

	frameCount uint64
}

// NewLoop creates a loop whose clock starts at start.
func NewLoop(start time.Time) *Loop {
	return &Loop{
		now:  start,
		byID: make(map[TimerID]*timer),
	}
}

// Now returns the loop clock, which only moves in Step.
func (l *Loop) Now() time.Time { return l.now }

// Frames returns how many steps have run.
func (l *Loop) Frames() uint64 { return l.frameCount }

// RequestFrame schedules fn to run on the next Step.
func (l *Loop) RequestFrame(fn func()) FrameID {
	l.nextFrame++
	l.frames = append(l.frames, frameRequest{id: l.nextFrame, fn: fn})
	return l.nextFrame
}

// CancelFrame drops a pending frame callback. Unknown or already-run IDs are ignored.
func (l *Loop) CancelFrame(id FrameID) {
	for i, f := range l.frames {
		if f.id == id {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

// AfterFunc schedules fn to run on the first Step at or after now+d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) TimerID {
	if d < 0 {
		d = 0
	}
	l.nextTimer++
	l.seq++
	t := &timer{id: l.nextTimer, due: l.now.Add(d), seq: l.seq, fn: fn}
	heap.Push(&l.timers, t)
	l.byID[t.id] = t
	return t.id
}

// CancelTimer stops a pending timer. It reports whether the timer was still pending.
func (l *Loop) CancelTimer(id TimerID) bool {
	t, ok := l.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&l.timers, t.index)
	delete(l.byID, id)
	return true
}

// PendingFrames returns the number of frame callbacks waiting for the next Step.
func (l *Loop) PendingFrames() int { return len(l.frames) }

// PendingTimers returns the number of timers that have not fired.
func (l *Loop) PendingTimers() int { return len(l.timers) }

// Step advances the clock to now, fires every timer that is due, then runs the
// frame callbacks requested before this step. Frames requested while running
// are deferred to the following step. A clock value in the past is ignored so
// time never runs backwards.
func (l *Loop) Step(now time.Time) {
	if now.After(l.now) {
		l.now = now
	}
	l.frameCount++

	for len(l.timers) > 0 && !l.timers[0].due.After(l.now) {
		t := heap.Pop(&l.timers).(*timer)
		delete(l.byID, t.id)
		t.fn()
	}

	if len(l.frames) == 0 {
		return
	}
	batch := l.frames
	l.frames = nil
	for _, f := range batch {
		f.fn()
	}
}
