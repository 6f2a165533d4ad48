package render

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hazyhaar/chattoc/outline"
)

// Text writes each list as a titled, numbered block. It implements
// outline.Toggler: a collapsed Text writes the title line only. It is
// also an outline.Notifier writing alerts and manual-copy text inline.
type Text struct {
	mu        sync.Mutex
	w         io.Writer
	logger    *slog.Logger
	collapsed bool
	last      outline.List
}

// NewText creates a Text renderer. If w is nil, os.Stdout is used.
func NewText(w io.Writer) *Text {
	if w == nil {
		w = os.Stdout
	}
	return &Text{w: w, logger: slog.Default()}
}

// WithLogger sets the logger for failures no caller sees.
func (t *Text) WithLogger(l *slog.Logger) *Text {
	if l != nil {
		t.logger = l
	}
	return t
}

func (t *Text) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = outline.List{Empty: true}
	return nil
}

func (t *Text) Render(l outline.List) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = l
	return t.write()
}

// Toggle flips between the collapsed and expanded form and redraws.
func (t *Text) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collapsed = !t.collapsed
	if err := t.write(); err != nil {
		t.logger.Warn("render: text toggle", "collapsed", t.collapsed, "error", err)
	}
}

func (t *Text) Alert(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "! %s\n", msg); err != nil {
		t.logger.Warn("render: text alert", "error", err)
	}
}

// Prompt writes the text between rulers so it can be copied by hand.
func (t *Text) Prompt(msg, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "%s\n-----\n%s\n-----\n", msg, text); err != nil {
		t.logger.Warn("render: text prompt", "error", err)
	}
}

// Collapsed reports whether the entries are hidden.
func (t *Text) Collapsed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collapsed
}

func (t *Text) write() error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Title, CountLabel(len(t.last.Items)))
	if !t.collapsed {
		if t.last.Empty {
			b.WriteString("  " + EmptyText + "\n")
		}
		for i, it := range t.last.Items {
			b.WriteString("  " + Line(i, it) + "\n")
		}
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		return fmt.Errorf("render: text: %w", err)
	}
	return nil
}
