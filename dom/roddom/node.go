package roddom

import (
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/chattoc/dom"
)

// Node is a dom.Node over a rod element handle.
type Node struct {
	el  *rod.Element
	log *slog.Logger
	key any
}

// Element exposes the underlying rod handle.
func (n *Node) Element() *rod.Element { return n.el }

// Key returns the backend node id, which is the same for every handle on
// one element. When the element cannot be described the remote object id
// is used instead.
func (n *Node) Key() any {
	if n.key != nil {
		return n.key
	}
	desc, err := n.el.Describe(0, false)
	if err != nil {
		n.log.Debug("roddom: describe node", "error", err)
		n.key = n.el.Object.ObjectID
		return n.key
	}
	n.key = desc.BackendNodeID
	return n.key
}

func (n *Node) Attr(name string) (string, bool) {
	v, err := n.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (n *Node) SetAttr(name, value string) error {
	if _, err := n.el.Eval(`(k, v) => this.setAttribute(k, v)`, name, value); err != nil {
		return fmt.Errorf("roddom: set %s: %w", name, err)
	}
	return nil
}

// Text returns the rendered text, or "" when the element is gone.
func (n *Node) Text() string {
	t, err := n.el.Text()
	if err != nil {
		n.log.Debug("roddom: text", "error", err)
		return ""
	}
	return t
}

func (n *Node) HTML() (string, error) {
	h, err := n.el.HTML()
	if err != nil {
		return "", fmt.Errorf("roddom: html: %w", err)
	}
	return h, nil
}

// Rect returns the bounding client rect; a failed call counts as not
// rendered.
func (n *Node) Rect() dom.Rect {
	res, err := n.el.Eval(`() => {
		const r = this.getBoundingClientRect();
		return { x: r.x, y: r.y, width: r.width, height: r.height };
	}`)
	if err != nil {
		return dom.Rect{}
	}
	v := res.Value
	return dom.Rect{
		X:      v.Get("x").Num(),
		Y:      v.Get("y").Num(),
		Width:  v.Get("width").Num(),
		Height: v.Get("height").Num(),
	}
}

func (n *Node) Connected() bool {
	res, err := n.el.Eval(`() => this.isConnected`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (n *Node) ScrollIntoView() error {
	if _, err := n.el.Eval(`() => this.scrollIntoView({ behavior: 'smooth', block: 'center' })`); err != nil {
		return fmt.Errorf("roddom: scroll into view: %w", err)
	}
	return nil
}

func (n *Node) AddClass(class string) error {
	return n.classList("add", class)
}

func (n *Node) RemoveClass(class string) error {
	return n.classList("remove", class)
}

func (n *Node) classList(op, class string) error {
	if _, err := n.el.Eval(`(op, c) => this.classList[op](c)`, op, class); err != nil {
		return fmt.Errorf("roddom: class %s %s: %w", op, class, err)
	}
	return nil
}
