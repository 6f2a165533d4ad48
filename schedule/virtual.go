package schedule

import (
	"container/heap"
	"time"
)

// Virtual is a deterministic Scheduler driven by Advance. Callbacks run on
// the goroutine calling Advance or Flush, in due-time order; ties keep
// scheduling order.
type Virtual struct {
	now   time.Time
	frame time.Duration
	seq   uint64
	queue timerHeap
	fired int
}

// NewVirtual returns a Virtual clock starting at start. A zero start uses
// the Unix epoch.
func NewVirtual(start time.Time) *Virtual {
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	return &Virtual{now: start, frame: DefaultFrame}
}

// SetFrame overrides the NextFrame period.
func (v *Virtual) SetFrame(d time.Duration) { v.frame = d }

// Frame returns the NextFrame period.
func (v *Virtual) Frame() time.Duration { return v.frame }

func (v *Virtual) Now() time.Time { return v.now }

func (v *Virtual) Post(fn func()) { v.schedule(0, 0, fn) }

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer { return v.schedule(d, 0, fn) }

func (v *Virtual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Nanosecond
	}
	return v.schedule(d, d, fn)
}

func (v *Virtual) NextFrame(fn func()) Timer { return v.schedule(v.frame, 0, fn) }

func (v *Virtual) schedule(d, period time.Duration, fn func()) *virtualTimer {
	if d < 0 {
		d = 0
	}
	v.seq++
	t := &virtualTimer{v: v, due: v.now.Add(d), period: period, fn: fn, seq: v.seq, index: -1}
	heap.Push(&v.queue, t)
	return t
}

// Advance moves the clock forward by d, running every callback that
// becomes due, including ones scheduled by callbacks along the way.
func (v *Virtual) Advance(d time.Duration) {
	end := v.now.Add(d)
	for len(v.queue) > 0 {
		next := v.queue[0]
		if next.due.After(end) {
			break
		}
		heap.Pop(&v.queue)
		if next.due.After(v.now) {
			v.now = next.due
		}
		if next.period > 0 {
			next.due = next.due.Add(next.period)
			v.seq++
			next.seq = v.seq
			heap.Push(&v.queue, next)
		} else {
			next.done = true
		}
		v.fired++
		next.fn()
	}
	v.now = end
}

// Flush runs everything already due at the current instant.
func (v *Virtual) Flush() { v.Advance(0) }

// Pending reports the number of active timers, periodic ones included.
func (v *Virtual) Pending() int { return len(v.queue) }

// Fired reports how many callbacks have run so far.
func (v *Virtual) Fired() int { return v.fired }

type virtualTimer struct {
	v      *Virtual
	due    time.Time
	period time.Duration
	fn     func()
	seq    uint64
	index  int
	done   bool
}

func (t *virtualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	if t.index >= 0 {
		heap.Remove(&t.v.queue, t.index)
	}
	return true
}

type timerHeap []*virtualTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*virtualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
