package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/chattoc/outline"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Renderer forwards engine output to a running program. It implements
// outline.Renderer, outline.Toggler and outline.Notifier.
type Renderer struct {
	s Sender
}

// NewRenderer returns a Renderer sending to s.
func NewRenderer(s Sender) *Renderer { return &Renderer{s: s} }

func (r *Renderer) Init() error {
	r.s.Send(initMsg{})
	return nil
}

func (r *Renderer) Render(l outline.List) error {
	r.s.Send(listMsg{list: l})
	return nil
}

func (r *Renderer) Toggle() { r.s.Send(toggleMsg{}) }

func (r *Renderer) Alert(msg string) { r.s.Send(statusMsg{text: msg, err: true}) }

// Prompt shows text in a box for manual copying until dismissed.
func (r *Renderer) Prompt(msg, text string) { r.s.Send(promptMsg{msg: msg, text: text}) }
