// Package tui is a terminal overlay for the outline: a bubbletea model
// listing the entries with manual controls, plus the Renderer that feeds
// it from the engine.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/chattoc/outline"
	"github.com/hazyhaar/chattoc/render"
)

// Controls are the engine operations the overlay triggers. They are
// called from bubbletea command goroutines, never from Update.
type Controls interface {
	Select(id string) error
	Refresh() error
	Export() error
}

// ExportedText is the status shown after a successful export.
const ExportedText = "Markdown copied to the clipboard."

type (
	initMsg   struct{}
	listMsg   struct{ list outline.List }
	toggleMsg struct{}
	statusMsg struct {
		text string
		err  bool
	}
	promptMsg struct{ msg, text string }
)

// Model is the overlay state.
type Model struct {
	ctl Controls

	items     []outline.Item
	empty     bool
	cursor    int
	collapsed bool

	status    string
	statusErr bool
	prompt    *promptMsg

	width  int
	height int
}

// NewModel creates the overlay model.
func NewModel(ctl Controls) *Model {
	return &Model{ctl: ctl, empty: true}
}

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case initMsg:
		m.items, m.empty, m.cursor, m.prompt = nil, true, 0, nil
		return m, nil

	case listMsg:
		m.items = msg.list.Items
		m.empty = msg.list.Empty
		if m.cursor >= len(m.items) {
			m.cursor = max(len(m.items)-1, 0)
		}
		return m, nil

	case toggleMsg:
		m.collapsed = !m.collapsed
		return m, nil

	case statusMsg:
		m.status = msg.text
		m.statusErr = msg.err
		return m, nil

	case promptMsg:
		p := msg
		m.prompt = &p
		return m, nil

	case tea.KeyMsg:
		m.status = ""

		switch {
		case key.Matches(msg, Keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, Keys.Dismiss):
			m.prompt = nil
			return m, nil

		case key.Matches(msg, Keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, Keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, Keys.Select):
			if m.collapsed || m.cursor >= len(m.items) {
				return m, nil
			}
			id := m.items[m.cursor].ID
			return m, m.call(func() error { return m.ctl.Select(id) }, "")

		case key.Matches(msg, Keys.Refresh):
			return m, m.call(m.ctl.Refresh, "")

		case key.Matches(msg, Keys.Export):
			return m, m.call(m.ctl.Export, ExportedText)

		case key.Matches(msg, Keys.Toggle):
			m.collapsed = !m.collapsed
			return m, nil
		}
	}
	return m, nil
}

// call runs fn off the update goroutine and reports the outcome.
func (m *Model) call(fn func() error, ok string) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return statusMsg{text: err.Error(), err: true}
		}
		if ok == "" {
			return nil
		}
		return statusMsg{text: ok}
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(render.Title))
	b.WriteString(" ")
	b.WriteString(countStyle.Render(render.CountLabel(len(m.items))))
	b.WriteString("\n\n")

	if !m.collapsed {
		if m.empty || len(m.items) == 0 {
			b.WriteString(emptyStyle.Render(render.EmptyText))
			b.WriteString("\n")
		}
		start, items := m.window()
		for j, it := range items {
			i := start + j
			line := render.Line(i, it)
			if i == m.cursor {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(itemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	if m.prompt != nil {
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(m.prompt.msg + "\n\n" + m.prompt.text))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(statusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpLine())
	return appStyle.Render(b.String())
}

// window returns the slice of entries that fits the terminal, keeping
// the cursor in view, and the index of its first entry.
func (m *Model) window() (int, []outline.Item) {
	room := m.height - 10
	if m.height <= 0 || room < 1 || len(m.items) <= room {
		return 0, m.items
	}
	start := 0
	if m.cursor >= room {
		start = m.cursor - room + 1
	}
	return start, m.items[start : start+room]
}

func helpLine() string {
	var parts []string
	for _, k := range Keys.help() {
		h := k.Help()
		parts = append(parts, fmt.Sprintf("%s %s", helpKeyStyle.Render(h.Key), helpDescStyle.Render(h.Desc)))
	}
	return strings.Join(parts, "  ")
}
