// Package outline keeps a navigable outline of the user messages in a
// chat document in sync with a content area that mutates on its own.
//
// The Engine owns all synchronisation state and runs entirely on one
// schedule.Scheduler thread. Three triggers feed one idempotent rebuild
// decision: a frame-debounced mutation subscription, a fixed-period poll,
// and a location sampler that reboots the session on navigation. Selecting
// an entry resolves it back to a live element, scrolling the content area
// until the element renders or a deadline passes.
package outline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/label"
)

// Item is one outline entry. Items are rebuilt on every render and never
// modified afterwards.
type Item struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	SecondaryID string `json:"secondary_id,omitempty"`
}

// List is a full replacement of the rendered outline.
type List struct {
	Items []Item `json:"items"`
	// Empty asks the renderer for its explicit "no items found" state.
	Empty      bool   `json:"empty"`
	Generation uint64 `json:"generation"`
	Session    string `json:"session"`
}

// Renderer draws the outline. Init is called at boot and after each
// reboot and must be idempotent.
type Renderer interface {
	Init() error
	Render(List) error
}

// Toggler is implemented by renderers that can collapse and expand.
type Toggler interface {
	Toggle()
}

// Notifier is the user-visible failure surface.
type Notifier interface {
	// Alert reports a failure that needs the user's attention.
	Alert(msg string)
	// Prompt presents text for manual copying.
	Prompt(msg, text string)
}

// BodyFunc returns the HTML body of the element behind an item id.
type BodyFunc func(id string) (string, error)

// Exporter turns the current outline into a document for the user.
type Exporter interface {
	Export(ctx context.Context, items []Item, body BodyFunc) error
}

var (
	// ErrStarted is returned by Start on an engine that already ran.
	ErrStarted = errors.New("outline: engine already started")
	// ErrStopped is returned by operations on a stopped engine.
	ErrStopped = errors.New("outline: engine stopped")
	// ErrNoExporter is returned by Export when none is configured.
	ErrNoExporter = errors.New("outline: no exporter configured")
)

// Messages surfaced through the Notifier.
const (
	MsgStale    = "Cannot find the message for this entry. Refresh the outline and try again."
	MsgTimedOut = "Could not locate the target message. Scroll a little by hand or refresh the outline."
)

// DefaultPredicates are the structural predicates of a user message.
var DefaultPredicates = []string{
	`[data-message-author-role="user"]`,
	`[data-testid="user-message"]`,
	`.text-base[data-role="user"]`,
	`div[data-testid="conversation-turn"][data-is-user="true"]`,
}

// Options holds the engine's tunables. Zero values take the defaults.
type Options struct {
	Predicates     []dom.Selector
	AnchorAttr     string // Default: data-cgpt-anchor
	AnchorPrefix   string // Default: cgpt
	SecondaryAttr  string // Default: data-message-id
	HighlightClass string // Default: cgpt-highlight
	Label          label.Options

	PollInterval      time.Duration // Default: 1.5s
	NavInterval       time.Duration // Default: 800ms
	HighlightDuration time.Duration // Default: 1.5s

	LocateStep     int           // pixels per scroll step. Default: 400
	LocateInterval time.Duration // Default: 200ms
	LocateDeadline time.Duration // Default: 6s
}

func (o *Options) defaults() {
	if len(o.Predicates) == 0 {
		sels, _ := dom.ParseSelectors(DefaultPredicates)
		o.Predicates = sels
	}
	if o.AnchorAttr == "" {
		o.AnchorAttr = "data-cgpt-anchor"
	}
	if o.AnchorPrefix == "" {
		o.AnchorPrefix = "cgpt"
	}
	if o.SecondaryAttr == "" {
		o.SecondaryAttr = "data-message-id"
	}
	if o.HighlightClass == "" {
		o.HighlightClass = "cgpt-highlight"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 1500 * time.Millisecond
	}
	if o.NavInterval <= 0 {
		o.NavInterval = 800 * time.Millisecond
	}
	if o.HighlightDuration <= 0 {
		o.HighlightDuration = 1500 * time.Millisecond
	}
	if o.LocateStep == 0 {
		o.LocateStep = 400
	}
	if o.LocateInterval <= 0 {
		o.LocateInterval = 200 * time.Millisecond
	}
	if o.LocateDeadline <= 0 {
		o.LocateDeadline = 6 * time.Second
	}
}

// logNotifier is the Notifier used when none is configured.
type logNotifier struct{ log *slog.Logger }

func (n logNotifier) Alert(msg string) { n.log.Warn("outline: alert", "message", msg) }

func (n logNotifier) Prompt(msg, text string) {
	n.log.Warn("outline: manual copy required", "message", msg, "bytes", len(text), "text", text)
}
