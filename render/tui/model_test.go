package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/chattoc/outline"
	"github.com/hazyhaar/chattoc/render"
)

type fakeControls struct {
	selected  []string
	refreshes int
	exportErr error
}

func (f *fakeControls) Select(id string) error { f.selected = append(f.selected, id); return nil }
func (f *fakeControls) Refresh() error         { f.refreshes++; return nil }
func (f *fakeControls) Export() error          { return f.exportErr }

type recordSender struct{ msgs []tea.Msg }

func (r *recordSender) Send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func threeItems() outline.List {
	return outline.List{Items: []outline.Item{
		{ID: "a", Label: "alpha"},
		{ID: "b", Label: "beta"},
		{ID: "c", Label: "gamma"},
	}}
}

// feed pushes everything the renderer sent through the model.
func feed(m *Model, s *recordSender) {
	for _, msg := range s.msgs {
		m.Update(msg)
	}
	s.msgs = nil
}

func TestModel_EmptyView(t *testing.T) {
	m := NewModel(&fakeControls{})
	s := &recordSender{}
	r := NewRenderer(s)
	r.Init()
	r.Render(outline.List{Empty: true})
	feed(m, s)

	v := m.View()
	if !strings.Contains(v, "(0)") {
		t.Errorf("view missing count label (0)")
	}
	if !strings.Contains(v, render.EmptyText) {
		t.Errorf("view missing empty state")
	}
}

func TestModel_NavigateAndSelect(t *testing.T) {
	ctl := &fakeControls{}
	m := NewModel(ctl)
	m.Update(listMsg{list: threeItems()})

	m.Update(runes("j"))
	m.Update(runes("j"))
	m.Update(runes("j"))
	if m.cursor != 2 {
		t.Fatalf("cursor: got %d, want 2", m.cursor)
	}
	m.Update(runes("k"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter: got nil command")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("select result: got %v, want nil", msg)
	}
	if len(ctl.selected) != 1 || ctl.selected[0] != "b" {
		t.Errorf("selected: got %v, want [b]", ctl.selected)
	}
}

func TestModel_CursorClampedOnShorterList(t *testing.T) {
	m := NewModel(&fakeControls{})
	m.Update(listMsg{list: threeItems()})
	m.cursor = 2
	m.Update(listMsg{list: outline.List{Items: []outline.Item{{ID: "a", Label: "alpha"}}}})
	if m.cursor != 0 {
		t.Errorf("cursor: got %d, want 0", m.cursor)
	}
}

func TestModel_RefreshAndExport(t *testing.T) {
	ctl := &fakeControls{}
	m := NewModel(ctl)

	_, cmd := m.Update(runes("r"))
	cmd()
	if ctl.refreshes != 1 {
		t.Errorf("refreshes: got %d, want 1", ctl.refreshes)
	}

	_, cmd = m.Update(runes("e"))
	m.Update(cmd())
	if m.status != ExportedText || m.statusErr {
		t.Errorf("status after export: got %q (err=%v)", m.status, m.statusErr)
	}

	ctl.exportErr = errors.New("export: clipboard unavailable")
	_, cmd = m.Update(runes("e"))
	m.Update(cmd())
	if !m.statusErr {
		t.Errorf("status after failed export: got %q, want an error", m.status)
	}
}

func TestModel_ToggleHidesEntries(t *testing.T) {
	m := NewModel(&fakeControls{})
	m.Update(listMsg{list: threeItems()})
	m.Update(runes("c"))
	v := m.View()
	if strings.Contains(v, "alpha") {
		t.Error("collapsed view lists entries")
	}
	if !strings.Contains(v, "(3)") {
		t.Error("collapsed view lost the count")
	}

	s := &recordSender{}
	NewRenderer(s).Toggle()
	feed(m, s)
	if !strings.Contains(m.View(), "alpha") {
		t.Error("renderer toggle did not expand")
	}
}

func TestRenderer_Notifier(t *testing.T) {
	m := NewModel(&fakeControls{})
	s := &recordSender{}
	r := NewRenderer(s)

	r.Alert(outline.MsgTimedOut)
	r.Prompt("Copy the outline below:", "# Questions")
	feed(m, s)

	if m.status != outline.MsgTimedOut || !m.statusErr {
		t.Errorf("alert: got %q (err=%v)", m.status, m.statusErr)
	}
	if !strings.Contains(m.View(), "# Questions") {
		t.Error("prompt text not shown")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.prompt != nil {
		t.Error("esc did not dismiss the prompt")
	}
}

func TestModel_WindowKeepsCursorVisible(t *testing.T) {
	m := NewModel(&fakeControls{})
	var l outline.List
	for i := 0; i < 30; i++ {
		l.Items = append(l.Items, outline.Item{ID: string(rune('a' + i)), Label: "entry"})
	}
	m.Update(listMsg{list: l})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 15})
	m.cursor = 20

	start, items := m.window()
	if len(items) != 5 {
		t.Fatalf("window size: got %d, want 5", len(items))
	}
	if start+len(items)-1 != 20 {
		t.Errorf("window end: got %d, want the cursor 20", start+len(items)-1)
	}
}
