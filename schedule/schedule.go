// Package schedule provides the single-threaded cooperative executor the
// outline engine runs on. Every timer callback, mutation notification and
// external request is serialised onto one goroutine, so engine state never
// needs a lock.
//
// Two implementations share the Scheduler interface: Loop runs on wall-clock
// time, Virtual advances a synthetic clock under test control.
package schedule

import (
	"errors"
	"sort"
	"time"
)

// DefaultFrame is the display-refresh period used for NextFrame callbacks.
const DefaultFrame = 16 * time.Millisecond

// ErrClosed is returned by Loop.Do once the loop has stopped.
var ErrClosed = errors.New("schedule: loop closed")

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running again. It reports whether
	// the timer was still active. Stopping twice is safe.
	Stop() bool
}

// Scheduler schedules callbacks on a single logical thread.
type Scheduler interface {
	Now() time.Time
	// Post runs fn on the scheduler thread as soon as possible.
	Post(fn func())
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn every d until stopped.
	Every(d time.Duration, fn func()) Timer
	// NextFrame runs fn on the next display-refresh tick.
	NextFrame(fn func()) Timer
}

// Group tracks the live resources of one owner so they can be released
// together. Resources that finish on their own remove themselves with the
// done function returned at registration.
type Group struct {
	next  int
	items map[int]func()
}

// Add registers stop and returns a function that unregisters it without
// calling it.
func (g *Group) Add(stop func()) (done func()) {
	if g.items == nil {
		g.items = make(map[int]func())
	}
	id := g.next
	g.next++
	g.items[id] = stop
	return func() { delete(g.items, id) }
}

// Timer registers t.
func (g *Group) Timer(t Timer) (done func()) {
	return g.Add(func() { t.Stop() })
}

// Len reports how many resources are registered.
func (g *Group) Len() int { return len(g.items) }

// Release calls every registered stop function in registration order and
// empties the group.
func (g *Group) Release() {
	ids := make([]int, 0, len(g.items))
	for id := range g.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	items := g.items
	g.items = nil
	for _, id := range ids {
		items[id]()
	}
}
