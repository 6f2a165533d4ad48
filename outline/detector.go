package outline

import (
	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/schedule"
)

type detectorState int

const (
	detectorIdle detectorState = iota
	detectorPending
)

func (s detectorState) String() string {
	if s == detectorPending {
		return "pending"
	}
	return "idle"
}

// changeDetector coalesces mutation notifications into at most one rebuild
// per frame. A notification arriving while a rebuild is pending replaces
// the scheduled callback instead of adding a second one.
type changeDetector struct {
	e     *Engine
	state detectorState
	timer schedule.Timer
	done  func()

	notifications int64
	fired         int64
}

// arm subscribes to mutation notifications for the engine's lifetime.
func (d *changeDetector) arm() error {
	cancel, err := d.e.doc.Observe(d.onMutation)
	if err != nil {
		return err
	}
	d.e.watchers.Add(cancel)
	return nil
}

func (d *changeDetector) onMutation(m dom.Mutation) {
	if d.e.stopped || m.Added == 0 {
		return
	}
	d.notifications++
	if d.state == detectorPending {
		d.cancel()
	}
	d.state = detectorPending
	gen := d.e.generation
	d.timer = d.e.sched.NextFrame(func() { d.fire(gen) })
	d.done = d.e.scoped.Timer(d.timer)
}

func (d *changeDetector) fire(gen uint64) {
	if gen != d.e.generation || d.e.stopped {
		return
	}
	if d.done != nil {
		d.done()
	}
	d.state = detectorIdle
	d.timer, d.done = nil, nil
	d.fired++
	d.e.Rebuild(false)
}

func (d *changeDetector) cancel() {
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.done != nil {
		d.done()
	}
	d.timer, d.done = nil, nil
}

// reset returns to idle after the scoped group released the pending timer.
func (d *changeDetector) reset() {
	d.cancel()
	d.state = detectorIdle
}
