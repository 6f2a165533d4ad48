package render

import "github.com/hazyhaar/chattoc/outline"

// Callback delivers lists through Go function calls. Either function may
// be nil.
type Callback struct {
	OnInit   func() error
	OnRender func(outline.List) error
}

func (c Callback) Init() error {
	if c.OnInit != nil {
		return c.OnInit()
	}
	return nil
}

func (c Callback) Render(l outline.List) error {
	if c.OnRender != nil {
		return c.OnRender(l)
	}
	return nil
}
