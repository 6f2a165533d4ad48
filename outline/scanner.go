package outline

import (
	"log/slog"

	"github.com/hazyhaar/chattoc/dom"
)

// scan returns the visible elements matching any predicate, in first-seen
// order across predicates, each element once. Query failures are logged
// and contribute nothing.
func scan(doc dom.Document, preds []dom.Selector, log *slog.Logger) []dom.Node {
	seen := make(map[any]struct{})
	var out []dom.Node
	for _, p := range preds {
		nodes, err := doc.QueryAll(p)
		if err != nil {
			log.Warn("outline: query failed", "selector", p.String(), "error", err)
			continue
		}
		for _, n := range nodes {
			k := n.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if !n.Rect().Visible() {
				continue
			}
			out = append(out, n)
		}
	}
	return out
}
