package schedule

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LoopConfig tunes a Loop.
type LoopConfig struct {
	// Frame is the NextFrame period. Default: DefaultFrame.
	Frame time.Duration
	// Queue is the task channel capacity. Default: 1024.
	Queue  int
	Logger *slog.Logger
}

func (c *LoopConfig) defaults() {
	if c.Frame <= 0 {
		c.Frame = DefaultFrame
	}
	if c.Queue <= 0 {
		c.Queue = 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Loop is a wall-clock Scheduler. Callbacks from time.AfterFunc goroutines
// are funnelled through a task channel and executed by Run.
type Loop struct {
	cfg   LoopConfig
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a Loop. Call Run to start executing tasks.
func NewLoop(cfg LoopConfig) *Loop {
	cfg.defaults()
	return &Loop{
		cfg:   cfg,
		tasks: make(chan func(), cfg.Queue),
		done:  make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.cfg.Logger.Error("schedule: task panicked", "panic", r)
		}
	}()
	fn()
}

// Now returns wall-clock time.
func (l *Loop) Now() time.Time { return time.Now() }

// Post enqueues fn. It is safe to call from any goroutine. Tasks posted
// after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
	case l.tasks <- fn:
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case l.tasks <- task:
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc runs fn on the loop once after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

// Every runs fn on the loop every d. Ticks are not queued while a
// previous tick is still waiting to run.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	var pending atomic.Bool
	t.ticker = time.NewTicker(d)
	go func() {
		for {
			select {
			case <-l.done:
				return
			case <-t.quit():
				return
			case <-t.ticker.C:
				if !pending.CompareAndSwap(false, true) {
					continue
				}
				l.Post(func() {
					pending.Store(false)
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	}()
	return t
}

// NextFrame runs fn on the loop after one frame period.
func (l *Loop) NextFrame(fn func()) Timer {
	return l.AfterFunc(l.cfg.Frame, fn)
}

type loopTimer struct {
	stopped atomic.Bool
	timer   *time.Timer
	ticker  *time.Ticker

	mu   sync.Mutex
	stop chan struct{}
}

func (t *loopTimer) quit() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		t.stop = make(chan struct{})
	}
	return t.stop
}

func (t *loopTimer) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.quit())
	}
	return true
}
