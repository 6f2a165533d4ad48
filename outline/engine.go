package outline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/idgen"
	"github.com/hazyhaar/chattoc/schedule"
)

// Config wires an Engine to its collaborators.
type Config struct {
	Document  dom.Document
	Scheduler schedule.Scheduler
	Renderer  Renderer
	// Notifier defaults to logging the alert.
	Notifier Notifier
	// Exporter is optional; Export fails with ErrNoExporter without one.
	Exporter Exporter
	Options  Options
	Logger   *slog.Logger
}

// Stats are point-in-time counters.
type Stats struct {
	Session    string `json:"session"`
	Generation uint64 `json:"generation"`
	Count      int    `json:"count"`
	Rebuilds   int64  `json:"rebuilds"`
	Skipped    int64  `json:"skipped"`
	Reboots    int64  `json:"reboots"`
	Searches   int    `json:"searches"`
	Location   string `json:"location"`
}

// Engine is one outline session. All methods must be called on the
// scheduler thread.
type Engine struct {
	doc      dom.Document
	sched    schedule.Scheduler
	render   Renderer
	notify   Notifier
	exporter Exporter
	opts     Options
	log      *slog.Logger
	tag      tagger

	session string
	started bool
	stopped bool

	// watchers live from Start to Stop; a reboot leaves them armed.
	watchers schedule.Group
	// scoped holds everything created under the current generation.
	scoped     schedule.Group
	generation uint64

	lastCount int
	items     []Item
	index     map[string]dom.Node

	detector *changeDetector
	nav      *navWatcher
	searches map[*Search]struct{}

	rebuilds, skipped, reboots int64
}

// New creates an Engine. Call Start on the scheduler thread to boot it.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = logNotifier{log: cfg.Logger}
	}
	cfg.Options.defaults()

	e := &Engine{
		doc:       cfg.Document,
		sched:     cfg.Scheduler,
		render:    cfg.Renderer,
		notify:    cfg.Notifier,
		exporter:  cfg.Exporter,
		opts:      cfg.Options,
		session:   idgen.New(),
		lastCount: -1,
		index:     make(map[string]dom.Node),
		searches:  make(map[*Search]struct{}),
	}
	e.log = cfg.Logger.With("session", e.session)
	e.tag = tagger{doc: e.doc, attr: e.opts.AnchorAttr, prefix: e.opts.AnchorPrefix}
	e.detector = &changeDetector{e: e}
	e.nav = &navWatcher{e: e}
	return e
}

// Start boots the session: it initialises the overlay, renders a forced
// rebuild and arms the change detector, the poller and the navigation
// watcher. A failed mutation subscription is logged and left to the poller.
func (e *Engine) Start() error {
	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return ErrStarted
	}
	e.started = true

	if err := e.render.Init(); err != nil {
		return fmt.Errorf("outline: init renderer: %w", err)
	}
	e.nav.seed()
	e.Rebuild(true)

	if err := e.detector.arm(); err != nil {
		e.log.Warn("outline: mutation subscription failed, relying on poller", "error", err)
	}
	e.watchers.Timer(e.sched.Every(e.opts.PollInterval, e.poll))
	e.watchers.Timer(e.sched.Every(e.opts.NavInterval, e.nav.sample))

	e.log.Info("outline: started",
		"predicates", len(e.opts.Predicates),
		"poll", e.opts.PollInterval,
		"nav", e.opts.NavInterval)
	return nil
}

// Stop cancels every timer and subscription. Searches still running end
// in StateCancelled without a notification. Stop is idempotent.
func (e *Engine) Stop() {
	if e.stopped {
		return
	}
	e.stopped = true
	e.watchers.Release()
	e.scoped.Release()
	e.detector.reset()
	e.cancelSearches()
	e.log.Info("outline: stopped", "rebuilds", e.rebuilds, "reboots", e.reboots)
}

// reboot tears down the generation-scoped state and rebuilds from a fresh
// scan. Running searches end in StateCancelled without a notification.
// The watchers stay armed: a reboot is driven by one of them.
func (e *Engine) reboot(reason string) {
	e.scoped.Release()
	e.detector.reset()
	e.cancelSearches()
	e.generation++
	e.reboots++
	e.lastCount = -1
	e.log.Info("outline: reboot", "reason", reason, "generation", e.generation)

	if err := e.render.Init(); err != nil {
		e.log.Error("outline: re-init renderer", "error", err)
	}
	e.Rebuild(true)
}

func (e *Engine) cancelSearches() {
	for s := range e.searches {
		s.resolve(StateCancelled, nil)
	}
}

// Refresh is the manual rebuild control.
func (e *Engine) Refresh() {
	if e.stopped {
		return
	}
	e.log.Debug("outline: manual refresh")
	e.Rebuild(true)
}

// Toggle collapses or expands the overlay when the renderer supports it.
func (e *Engine) Toggle() {
	if t, ok := e.render.(Toggler); ok {
		t.Toggle()
	}
}

// SetPredicates replaces the qualifying-node predicates and reboots so the
// outline reflects them immediately.
func (e *Engine) SetPredicates(preds []dom.Selector) {
	if len(preds) == 0 {
		return
	}
	e.opts.Predicates = preds
	if e.started && !e.stopped {
		e.reboot("predicates")
	}
}

// Items returns the last rendered list.
func (e *Engine) Items() []Item {
	out := make([]Item, len(e.items))
	copy(out, e.items)
	return out
}

// Generation returns the current reboot generation.
func (e *Engine) Generation() uint64 { return e.generation }

// Session returns the session id used in logs and rendered lists.
func (e *Engine) Session() string { return e.session }

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Session:    e.session,
		Generation: e.generation,
		Count:      e.lastCount,
		Rebuilds:   e.rebuilds,
		Skipped:    e.skipped,
		Reboots:    e.reboots,
		Searches:   len(e.searches),
		Location:   e.nav.last,
	}
}

// Export scans the document afresh and hands the items to the exporter.
// The rendered list is left alone: an equal-count change may not have
// been rendered, but its labels still belong in the export.
func (e *Engine) Export(ctx context.Context) error {
	if e.stopped {
		return ErrStopped
	}
	if e.exporter == nil {
		return ErrNoExporter
	}
	items, index := e.derive(scan(e.doc, e.opts.Predicates, e.log))
	e.index = index
	return e.exporter.Export(ctx, items, e.body)
}

func (e *Engine) body(id string) (string, error) {
	n := e.lookup(id)
	if n == nil {
		return "", fmt.Errorf("outline: no element for %q", id)
	}
	return n.HTML()
}
