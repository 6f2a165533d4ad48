// Package dom defines the content-area contract the outline engine
// observes and scrolls. Implementations live in dom/memdom (an in-memory
// tree) and dom/roddom (a live Chrome tab driven by rod).
package dom

// Rect is a rendered bounding box in CSS pixels.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Visible reports whether the box has non-zero extent.
func (r Rect) Visible() bool { return r.Width > 0 && r.Height > 0 }

// Mutation summarises one subtree mutation notification.
type Mutation struct {
	Added   int
	Removed int
}

// Node is a weak handle on a content-area element. The element may be
// replaced by the page at any time; Connected reports whether it still is
// part of the document.
type Node interface {
	// Key identifies the underlying element instance. Two handles on the
	// same element return equal keys.
	Key() any
	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	Text() string
	HTML() (string, error)
	Rect() Rect
	Connected() bool
	// ScrollIntoView centres the element in its scroll container.
	ScrollIntoView() error
	AddClass(class string) error
	RemoveClass(class string) error
}

// Document is the content-area collaborator.
type Document interface {
	// QueryAll returns the elements matching sel in document order.
	QueryAll(sel Selector) ([]Node, error)
	// ByID returns the element with the given id attribute.
	ByID(id string) (Node, bool)
	// ByAttr returns the first element whose attribute name equals value.
	ByAttr(name, value string) (Node, bool)
	// Observe subscribes fn to mutation notifications over the content
	// subtree. The returned function cancels the subscription.
	Observe(fn func(Mutation)) (cancel func(), err error)
	// ScrollBy scrolls the content container, or the window when there is
	// none, by dy pixels.
	ScrollBy(dy int) error
	// Location returns the current location identifier (the page URL).
	Location() (string, error)
}
