// Package render delivers outline lists to the surfaces that show them:
// a plain text overlay, JSON lines, a webhook, in-process callbacks, or
// several of those at once through a Router.
package render

import (
	"fmt"

	"github.com/hazyhaar/chattoc/outline"
)

// Title heads every human-readable rendering.
const Title = "Questions on this page"

// EmptyText is shown instead of entries when the scan found nothing.
const EmptyText = "No user messages detected yet."

// CountLabel formats the entry count shown next to the title.
func CountLabel(n int) string { return fmt.Sprintf("(%d)", n) }

// Line formats entry i (0-based) the way the overlay lists it.
func Line(i int, it outline.Item) string { return fmt.Sprintf("%d. %s", i+1, it.Label) }

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
