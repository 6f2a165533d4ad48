package outline

import (
	"fmt"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/idgen"
)

// tagger writes the permanent anchor onto scanned elements.
type tagger struct {
	doc    dom.Document
	attr   string
	prefix string
}

// tag makes sure n carries an anchor and returns its stable identifier.
// pos is the 0-based scan position, used only the first time n is seen:
// an element that already carries the anchor attribute keeps whatever
// identifier it was given, wherever it sits now.
func (t tagger) tag(n dom.Node, pos int) (string, error) {
	if _, ok := n.Attr(t.attr); !ok {
		if err := n.SetAttr(t.attr, idgen.Anchor(t.prefix, pos+1)); err != nil {
			return "", fmt.Errorf("outline: set anchor: %w", err)
		}
		if id, _ := n.Attr("id"); id == "" {
			id = idgen.Unique(idgen.ElementID(t.prefix, pos+1), t.taken, nil)
			if err := n.SetAttr("id", id); err != nil {
				return "", fmt.Errorf("outline: set id: %w", err)
			}
		}
	}
	if id, _ := n.Attr("id"); id != "" {
		return id, nil
	}
	// The page stripped the element id after tagging. The lookup table
	// still resolves the anchor value to this element.
	v, _ := n.Attr(t.attr)
	return v, nil
}

func (t tagger) taken(id string) bool {
	_, ok := t.doc.ByID(id)
	return ok
}
