// Package label turns message text into a one-line outline label.
package label

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Ellipsis marks a truncated label.
const Ellipsis = "…"

// DefaultMax is the maximum label width in display characters.
const DefaultMax = 80

// Options tunes label derivation.
type Options struct {
	// Max is the display-character limit. Longer text keeps Max-3
	// characters followed by Ellipsis. Default: DefaultMax.
	Max int
	// Fallback formats the label of a message with no text; it receives
	// the 1-based position. Default: "Question #%d".
	Fallback string
}

func (o *Options) defaults() {
	if o.Max <= 3 {
		o.Max = DefaultMax
	}
	if o.Fallback == "" {
		o.Fallback = "Question #%d"
	}
}

// Make collapses whitespace in raw, trims it and ellipsizes it. index is
// the 0-based position used for the fallback label.
func Make(raw string, index int, opts Options) string {
	opts.defaults()
	line := strings.Join(strings.Fields(raw), " ")
	if line == "" {
		return fmt.Sprintf(opts.Fallback, index+1)
	}
	return Truncate(line, opts.Max)
}

// Truncate shortens s to max display characters (grapheme clusters).
func Truncate(s string, max int) string {
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	keep := max - 3
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < keep && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	b.WriteString(Ellipsis)
	return b.String()
}
