package render

import (
	"log/slog"

	"github.com/hazyhaar/chattoc/outline"
)

// Router fans a list out to every renderer. One failing renderer does
// not block the others: errors are logged and the first is returned.
// Toggle reaches every renderer that supports it.
type Router struct {
	renderers []outline.Renderer
	logger    *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, renderers ...outline.Renderer) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{renderers: renderers, logger: logger}
}

// Add appends a renderer. Not safe once the engine started.
func (r *Router) Add(rr outline.Renderer) { r.renderers = append(r.renderers, rr) }

func (r *Router) Init() error {
	var firstErr error
	for _, rr := range r.renderers {
		if err := rr.Init(); err != nil {
			r.logger.Warn("render: init failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Render(l outline.List) error {
	var firstErr error
	for _, rr := range r.renderers {
		if err := rr.Render(l); err != nil {
			r.logger.Warn("render: render failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Toggle() {
	for _, rr := range r.renderers {
		if t, ok := rr.(outline.Toggler); ok {
			t.Toggle()
		}
	}
}
