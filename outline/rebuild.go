package outline

import (
	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/label"
)

// Rebuild scans, tags and derives the item list. Unless force is set, a
// scan with the same node count as the last rendered one is not rendered.
// Only the count is compared: two different sets of equal size count as
// unchanged. It reports whether the renderer was called.
func (e *Engine) Rebuild(force bool) bool {
	if e.stopped {
		return false
	}
	nodes := scan(e.doc, e.opts.Predicates, e.log)
	items, index := e.derive(nodes)
	e.index = index

	if !force && len(nodes) == e.lastCount {
		e.skipped++
		return false
	}
	e.lastCount = len(nodes)
	e.items = items
	e.rebuilds++

	list := List{
		Items:      items,
		Empty:      len(items) == 0,
		Generation: e.generation,
		Session:    e.session,
	}
	e.log.Debug("outline: rebuild", "count", len(items), "force", force, "generation", e.generation)
	if err := e.render.Render(list); err != nil {
		e.log.Error("outline: render", "error", err)
	}
	return true
}

// derive tags every node and builds the items plus the id lookup table.
func (e *Engine) derive(nodes []dom.Node) ([]Item, map[string]dom.Node) {
	items := make([]Item, 0, len(nodes))
	index := make(map[string]dom.Node, len(nodes))
	for i, n := range nodes {
		id, err := e.tag.tag(n, i)
		if err != nil {
			e.log.Warn("outline: tag failed", "position", i+1, "error", err)
			continue
		}
		secondary, _ := n.Attr(e.opts.SecondaryAttr)
		items = append(items, Item{
			ID:          id,
			Label:       label.Make(n.Text(), i, e.opts.Label),
			SecondaryID: secondary,
		})
		index[id] = n
	}
	return items, index
}

// lookup resolves a stable identifier to a connected element, first via
// the table built by the last scan, then via the document by element id
// and by anchor value.
func (e *Engine) lookup(id string) dom.Node {
	if id == "" {
		return nil
	}
	if n, ok := e.index[id]; ok && n.Connected() {
		return n
	}
	if n, ok := e.doc.ByID(id); ok {
		return n
	}
	if n, ok := e.doc.ByAttr(e.opts.AnchorAttr, id); ok {
		return n
	}
	return nil
}
