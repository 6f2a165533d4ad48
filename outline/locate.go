package outline

import (
	"time"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/schedule"
)

// State is the phase of a locate search.
type State int

const (
	StateSearching State = iota
	StateFound
	StateTimedOut
	// StateCancelled ends searches still running when the engine stops or
	// reboots.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateFound:
		return "found"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Search tracks one locate request. It ends in exactly one terminal state
// and releases its subscription and timers when it gets there.
type Search struct {
	e           *Engine
	ID          string
	SecondaryID string

	state    State
	node     dom.Node
	started  time.Time
	ended    time.Time
	steps    int
	attempts int
	res      schedule.Group
	onDone   []func(*Search)
}

// State returns the current phase.
func (s *Search) State() State { return s.state }

// Node returns the element found, or nil.
func (s *Search) Node() dom.Node { return s.node }

// Steps returns how many scroll steps were taken.
func (s *Search) Steps() int { return s.steps }

// Elapsed returns the time spent searching so far, or in total once ended.
func (s *Search) Elapsed() time.Duration {
	if s.state == StateSearching {
		return s.e.sched.Now().Sub(s.started)
	}
	return s.ended.Sub(s.started)
}

// Resources reports how many timers and subscriptions the search holds.
func (s *Search) Resources() int { return s.res.Len() }

// OnDone registers fn to run when the search ends. If it already ended fn
// runs immediately.
func (s *Search) OnDone(fn func(*Search)) {
	if s.state != StateSearching {
		fn(s)
		return
	}
	s.onDone = append(s.onDone, fn)
}

// Select locates the element behind a rendered item id, using the item's
// secondary id as fallback.
func (e *Engine) Select(id string) *Search {
	for _, it := range e.items {
		if it.ID == id {
			return e.Locate(it.ID, it.SecondaryID)
		}
	}
	return e.Locate(id, "")
}

// Locate resolves a stable identifier to a live element and reveals it.
// When the element is gone and secondary is set, it watches mutations and
// steps the content area's scroll until an element carrying secondary in
// the secondary attribute renders, or the deadline passes.
func (e *Engine) Locate(id, secondary string) *Search {
	s := &Search{e: e, ID: id, SecondaryID: secondary, started: e.sched.Now()}
	if e.stopped {
		s.resolve(StateCancelled, nil)
		return s
	}

	if n := e.lookup(id); n != nil {
		s.resolve(StateFound, n)
		return s
	}
	if secondary == "" {
		e.log.Info("outline: stale entry without secondary id", "id", id)
		s.resolve(StateTimedOut, nil)
		e.notify.Alert(MsgStale)
		return s
	}
	if s.attempt() {
		return s
	}

	e.searches[s] = struct{}{}
	cancel, err := e.doc.Observe(func(dom.Mutation) { s.attempt() })
	if err != nil {
		e.log.Warn("outline: locate subscription failed, scrolling only", "error", err)
	} else {
		s.res.Add(cancel)
	}
	s.res.Timer(e.sched.Every(e.opts.LocateInterval, s.step))
	s.res.Timer(e.sched.AfterFunc(e.opts.LocateDeadline, s.expire))
	e.log.Debug("outline: locate searching", "id", id, "secondary", secondary)
	return s
}

// attempt looks the target up by secondary id and resolves on success.
func (s *Search) attempt() bool {
	if s.state != StateSearching {
		return false
	}
	s.attempts++
	n, ok := s.e.doc.ByAttr(s.e.opts.SecondaryAttr, s.SecondaryID)
	if !ok {
		return false
	}
	return s.resolve(StateFound, n)
}

func (s *Search) step() {
	if s.attempt() || s.state != StateSearching {
		return
	}
	s.steps++
	if err := s.e.doc.ScrollBy(s.e.opts.LocateStep); err != nil {
		s.e.log.Debug("outline: scroll step", "error", err)
	}
}

func (s *Search) expire() {
	if s.resolve(StateTimedOut, nil) {
		s.e.notify.Alert(MsgTimedOut)
	}
}

// resolve moves the search to a terminal state once. Later calls, from
// whichever driver loses the race, report false and do nothing.
func (s *Search) resolve(st State, n dom.Node) bool {
	if s.state != StateSearching {
		return false
	}
	s.state = st
	s.node = n
	s.ended = s.e.sched.Now()
	s.res.Release()
	delete(s.e.searches, s)

	s.e.log.Info("outline: locate ended",
		"id", s.ID, "state", st.String(),
		"steps", s.steps, "attempts", s.attempts,
		"elapsed", s.ended.Sub(s.started))

	if st == StateFound {
		s.e.reveal(n)
	}
	for _, fn := range s.onDone {
		fn(s)
	}
	s.onDone = nil
	return true
}

// reveal scrolls n into centred view and highlights it for a while. A
// reboot before the highlight expires removes it at once.
func (e *Engine) reveal(n dom.Node) {
	if err := n.ScrollIntoView(); err != nil {
		e.log.Warn("outline: scroll into view", "error", err)
	}
	cls := e.opts.HighlightClass
	if err := n.AddClass(cls); err != nil {
		e.log.Debug("outline: add highlight", "error", err)
		return
	}
	var done func()
	t := e.sched.AfterFunc(e.opts.HighlightDuration, func() {
		done()
		n.RemoveClass(cls)
	})
	done = e.scoped.Add(func() {
		t.Stop()
		n.RemoveClass(cls)
	})
}
