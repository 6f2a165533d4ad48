// Package memdom is an in-memory content area backed by golang.org/x/net/html.
// It serves offline outlines of saved pages and gives tests full control
// over mutations, visibility, scrolling and notification timing.
package memdom

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/chattoc/dom"
)

// DefaultRect is the box given to visible elements without an explicit one.
var DefaultRect = dom.Rect{Width: 640, Height: 24}

// Option configures a Document.
type Option func(*Document)

// WithPoster routes mutation notifications through post, which mimics the
// asynchronous delivery of a browser MutationObserver. Without it
// notifications are delivered synchronously.
func WithPoster(post func(func())) Option {
	return func(d *Document) { d.post = post }
}

// WithLocation sets the initial location identifier.
func WithLocation(loc string) Option {
	return func(d *Document) { d.location = loc }
}

// Document is an in-memory dom.Document.
type Document struct {
	root     *html.Node
	post     func(func())
	location string
	scrollY  int
	scrolled *html.Node
	rects    map[*html.Node]dom.Rect
	obs      map[int]func(dom.Mutation)
	nextObs  int
	onScroll []func(y int)
}

var _ dom.Document = (*Document)(nil)

// Parse reads a full HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	d := &Document{
		root:  root,
		rects: make(map[*html.Node]dom.Rect),
		obs:   make(map[int]func(dom.Mutation)),
	}
	for _, o := range opts {
		o(d)
	}
	if d.post == nil {
		d.post = func(fn func()) { fn() }
	}
	return d, nil
}

// New parses src and panics on error. For tests and fixtures.
func New(src string, opts ...Option) *Document {
	d, err := Parse(strings.NewReader(src), opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Body returns the body element.
func (d *Document) Body() *Node {
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return nil
	}
	return d.wrap(body)
}

// Find returns the first element matching the CSS selector, or nil.
func (d *Document) Find(selector string) *Node {
	sel, err := dom.ParseSelector(selector)
	if err != nil {
		return nil
	}
	nodes := d.match(sel)
	if len(nodes) == 0 {
		return nil
	}
	return d.wrap(nodes[0])
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(sel dom.Selector) ([]dom.Node, error) {
	matches := d.match(sel)
	out := make([]dom.Node, len(matches))
	for i, n := range matches {
		out[i] = d.wrap(n)
	}
	return out, nil
}

// ByID implements dom.Document.
func (d *Document) ByID(id string) (dom.Node, bool) {
	return d.ByAttr("id", id)
}

// ByAttr implements dom.Document.
func (d *Document) ByAttr(name, value string) (dom.Node, bool) {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, ok := getAttr(n, name); ok && v == value {
				found = n
				return false
			}
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	return d.wrap(found), true
}

// Observe implements dom.Document.
func (d *Document) Observe(fn func(dom.Mutation)) (func(), error) {
	id := d.nextObs
	d.nextObs++
	d.obs[id] = fn
	return func() { delete(d.obs, id) }, nil
}

// Observers reports the number of live subscriptions.
func (d *Document) Observers() int { return len(d.obs) }

// ScrollBy implements dom.Document. Registered scroll hooks run after the
// offset changes, which is where tests emulate lazy rendering.
func (d *Document) ScrollBy(dy int) error {
	d.scrollY += dy
	for _, fn := range d.onScroll {
		fn(d.scrollY)
	}
	return nil
}

// OnScroll registers a hook called with the new offset after every ScrollBy.
func (d *Document) OnScroll(fn func(y int)) { d.onScroll = append(d.onScroll, fn) }

// ScrollY returns the accumulated scroll offset.
func (d *Document) ScrollY() int { return d.scrollY }

// Scrolled returns the element last scrolled into view, or nil.
func (d *Document) Scrolled() *Node {
	if d.scrolled == nil {
		return nil
	}
	return d.wrap(d.scrolled)
}

// Location implements dom.Document.
func (d *Document) Location() (string, error) { return d.location, nil }

// SetLocation changes the location identifier without touching the tree,
// like a client-side route change before the new view renders.
func (d *Document) SetLocation(loc string) { d.location = loc }

// SetRect overrides the rendered box of n.
func (d *Document) SetRect(n *Node, r dom.Rect) { d.rects[n.n] = r }

// AppendHTML parses fragment in the context of parent, appends the
// resulting nodes and emits one mutation notification.
func (d *Document) AppendHTML(parent *Node, fragment string) ([]*Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.n)
	if err != nil {
		return nil, fmt.Errorf("memdom: parse fragment: %w", err)
	}
	var added []*Node
	for _, n := range nodes {
		parent.n.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, d.wrap(n))
		}
	}
	d.notify(dom.Mutation{Added: len(nodes)})
	return added, nil
}

// Remove detaches n and emits one mutation notification.
func (d *Document) Remove(n *Node) {
	if n.n.Parent == nil {
		return
	}
	n.n.Parent.RemoveChild(n.n)
	d.notify(dom.Mutation{Removed: 1})
}

// Touch emits a notification with no added or removed nodes, like an
// attribute-only change batch.
func (d *Document) Touch() { d.notify(dom.Mutation{}) }

func (d *Document) notify(m dom.Mutation) {
	ids := make([]int, 0, len(d.obs))
	for id := range d.obs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		id := id
		d.post(func() {
			if fn, ok := d.obs[id]; ok {
				fn(m)
			}
		})
	}
}

func (d *Document) match(sel dom.Selector) []*html.Node {
	var out []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && sel.Match(n.Data, func(k string) (string, bool) { return getAttr(n, k) }) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func (d *Document) wrap(n *html.Node) *Node { return &Node{doc: d, n: n} }

func (d *Document) connected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// Node is an element handle.
type Node struct {
	doc *Document
	n   *html.Node
}

var _ dom.Node = (*Node)(nil)

func (n *Node) Key() any { return n.n }

func (n *Node) Attr(name string) (string, bool) { return getAttr(n.n, name) }

func (n *Node) SetAttr(name, value string) error {
	setAttr(n.n, name, value)
	return nil
}

// Text returns the text content with line breaks at block boundaries.
func (n *Node) Text() string {
	var b strings.Builder
	walk(n.n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && isBlock(c.DataAtom):
			b.WriteByte('\n')
		}
		return true
	})
	return b.String()
}

func (n *Node) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n.n); err != nil {
		return "", fmt.Errorf("memdom: render: %w", err)
	}
	return buf.String(), nil
}

// Rect returns the explicit box if one was set, a zero box when the
// element or an ancestor is hidden, DefaultRect otherwise.
func (n *Node) Rect() dom.Rect {
	if !n.Connected() {
		return dom.Rect{}
	}
	for p := n.n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && hidden(p) {
			return dom.Rect{}
		}
	}
	if r, ok := n.doc.rects[n.n]; ok {
		return r
	}
	return DefaultRect
}

func (n *Node) Connected() bool { return n.doc.connected(n.n) }

func (n *Node) ScrollIntoView() error {
	if !n.Connected() {
		return fmt.Errorf("memdom: scroll detached node")
	}
	n.doc.scrolled = n.n
	return nil
}

func (n *Node) AddClass(class string) error {
	v, _ := getAttr(n.n, "class")
	fields := strings.Fields(v)
	for _, f := range fields {
		if f == class {
			return nil
		}
	}
	setAttr(n.n, "class", strings.Join(append(fields, class), " "))
	return nil
}

func (n *Node) RemoveClass(class string) error {
	v, ok := getAttr(n.n, "class")
	if !ok {
		return nil
	}
	var kept []string
	for _, f := range strings.Fields(v) {
		if f != class {
			kept = append(kept, f)
		}
	}
	setAttr(n.n, "class", strings.Join(kept, " "))
	return nil
}

// HasClass reports whether the element carries class.
func (n *Node) HasClass(class string) bool {
	v, _ := getAttr(n.n, "class")
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hidden(n *html.Node) bool {
	if _, ok := getAttr(n, "hidden"); ok {
		return true
	}
	style, _ := getAttr(n, "style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Pre, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Tr:
		return true
	}
	return false
}
