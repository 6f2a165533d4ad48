// Package roddom implements dom.Document over a live Chrome tab driven by
// rod. Mutation notifications come from an injected MutationObserver that
// reports through a CDP runtime binding.
package roddom

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/chattoc/dom"
)

//go:embed observer.js
var observerJS string

const bindingName = "__chattoc_binding"

// DefaultContainer is the scrollable content area of the chat page.
const DefaultContainer = ".flex.h-full.flex-col.overflow-y-auto"

// HighlightStyle returns the rule drawn around a located message.
func HighlightStyle(class string) string {
	return fmt.Sprintf(".%s{outline:3px solid #f59e0b;outline-offset:2px;border-radius:6px;transition:outline-color .3s}", class)
}

// Config configures a Document.
type Config struct {
	Page *rod.Page
	// Container selects the element ScrollBy scrolls. When no element
	// matches, the window scrolls. Default: DefaultContainer.
	Container string
	// HighlightCSS is injected into every document the tab loads.
	HighlightCSS string
	// Post runs a function on the scheduler thread. Required: observer
	// callbacks never run on the CDP event goroutine.
	Post   func(func())
	Logger *slog.Logger
}

// Document is a dom.Document over one tab. Apart from the binding
// listener, every method must be called on the scheduler thread.
type Document struct {
	page      *rod.Page
	container string
	post      func(func())
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	script     string
	injectOnce sync.Once
	injectErr  error
	nextObs    int
	obs        map[int]func(dom.Mutation)
}

// New wraps the tab. Call Close to stop listening.
func New(cfg Config) *Document {
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Document{
		page:      cfg.Page,
		container: cfg.Container,
		post:      cfg.Post,
		logger:    cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
		obs:       make(map[int]func(dom.Mutation)),
	}
	if cfg.HighlightCSS != "" {
		css, _ := json.Marshal(cfg.HighlightCSS)
		d.script = fmt.Sprintf("window.__chattocStyle = %s;\n", css)
	}
	d.script += observerJS
	return d
}

// Close stops the binding listener. Subscriptions are dropped.
func (d *Document) Close() {
	d.cancel()
	d.obs = make(map[int]func(dom.Mutation))
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(sel dom.Selector) ([]dom.Node, error) {
	els, err := d.page.Elements(sel.String())
	if err != nil {
		return nil, fmt.Errorf("roddom: query %s: %w", sel.String(), err)
	}
	out := make([]dom.Node, len(els))
	for i, el := range els {
		out[i] = &Node{el: el, log: d.logger}
	}
	return out, nil
}

// ByID implements dom.Document.
func (d *Document) ByID(id string) (dom.Node, bool) {
	return d.first(dom.AttrSelector("id", id))
}

// ByAttr implements dom.Document.
func (d *Document) ByAttr(name, value string) (dom.Node, bool) {
	return d.first(dom.AttrSelector(name, value))
}

func (d *Document) first(sel dom.Selector) (dom.Node, bool) {
	els, err := d.page.Elements(sel.String())
	if err != nil {
		d.logger.Debug("roddom: lookup", "selector", sel.String(), "error", err)
		return nil, false
	}
	if len(els) == 0 {
		return nil, false
	}
	return &Node{el: els.First(), log: d.logger}, true
}

// Observe implements dom.Document. The first call installs the binding
// and the observer script, which then re-runs on every document the tab
// loads.
func (d *Document) Observe(fn func(dom.Mutation)) (func(), error) {
	d.injectOnce.Do(func() { d.injectErr = d.inject() })
	if d.injectErr != nil {
		return nil, d.injectErr
	}
	id := d.nextObs
	d.nextObs++
	d.obs[id] = fn
	return func() { delete(d.obs, id) }, nil
}

func (d *Document) inject() error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(d.page); err != nil {
		return fmt.Errorf("roddom: add binding: %w", err)
	}
	go d.listen()

	if _, err := d.page.EvalOnNewDocument(d.script); err != nil {
		d.logger.Warn("roddom: register observer for new documents", "error", err)
	}
	if _, err := d.page.Eval(d.script); err != nil {
		return fmt.Errorf("roddom: inject observer: %w", err)
	}
	d.logger.Debug("roddom: observer injected")
	return nil
}

// listen forwards binding calls to the scheduler thread.
func (d *Document) listen() {
	d.page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var m struct {
			Added   int `json:"added"`
			Removed int `json:"removed"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &m); err != nil {
			d.logger.Warn("roddom: parse binding payload", "error", err)
			return
		}
		mut := dom.Mutation{Added: m.Added, Removed: m.Removed}
		d.post(func() { d.dispatch(mut) })
	})()
}

func (d *Document) dispatch(m dom.Mutation) {
	for _, fn := range d.obs {
		fn(m)
	}
}

// ScrollBy implements dom.Document.
func (d *Document) ScrollBy(dy int) error {
	_, err := d.page.Eval(`(sel, dy) => {
		const c = document.querySelector(sel);
		(c || window).scrollBy({ top: dy, behavior: 'auto' });
	}`, d.container, dy)
	if err != nil {
		return fmt.Errorf("roddom: scroll: %w", err)
	}
	return nil
}

// Location implements dom.Document.
func (d *Document) Location() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", fmt.Errorf("roddom: location: %w", err)
	}
	return info.URL, nil
}
