package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazyhaar/chattoc/outline"
)

type prompts struct{ msgs, texts []string }

func (p *prompts) Alert(string) {}

func (p *prompts) Prompt(msg, text string) {
	p.msgs = append(p.msgs, msg)
	p.texts = append(p.texts, text)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var items = []outline.Item{
	{ID: "cgpt-anchor-1", Label: "How do I reverse a list?"},
	{ID: "cgpt-anchor-2", Label: "And a map?"},
}

func TestExport_CopiesEnumeratedMarkdown(t *testing.T) {
	var copied string
	m := New(Config{
		Notifier:  &prompts{},
		Clipboard: func(s string) error { copied = s; return nil },
		Logger:    quiet(),
	})
	if err := m.Export(context.Background(), items, nil); err != nil {
		t.Fatal(err)
	}
	want := "# ChatGPT Questions\n\n1. How do I reverse a list?\n2. And a map?"
	if copied != want {
		t.Errorf("markdown:\ngot  %q\nwant %q", copied, want)
	}
}

func TestExport_EmptyOutline(t *testing.T) {
	m := New(Config{Title: "Questions", Logger: quiet()})
	md, err := m.Render(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if md != "# Questions\n\n" {
		t.Errorf("markdown: got %q", md)
	}
}

func TestExport_ClipboardFailurePrompts(t *testing.T) {
	p := &prompts{}
	m := New(Config{
		Notifier:  p,
		Clipboard: func(string) error { return errors.New("no clipboard") },
		Logger:    quiet(),
	})
	err := m.Export(context.Background(), items, nil)
	if !errors.Is(err, ErrClipboard) {
		t.Fatalf("Export: got %v, want ErrClipboard", err)
	}
	if len(p.texts) != 1 || !strings.HasPrefix(p.texts[0], "# ChatGPT Questions") {
		t.Fatalf("prompt: got %q", p.texts)
	}
	if p.msgs[0] != MsgManualCopy {
		t.Errorf("prompt message: got %q", p.msgs[0])
	}
	var ce *ClipboardError
	if !errors.As(err, &ce) || ce.Markdown != p.texts[0] {
		t.Errorf("error does not carry the text: %v", err)
	}
}

func TestExport_ClipboardFailureWithoutNotifier(t *testing.T) {
	m := New(Config{
		Clipboard: func(string) error { return errors.New("no clipboard") },
		Logger:    quiet(),
	})
	one := []outline.Item{{ID: "a", Label: "first"}}
	err := m.Export(context.Background(), one, nil)
	var ce *ClipboardError
	if !errors.As(err, &ce) {
		t.Fatalf("Export: got %v, want *ClipboardError", err)
	}
	if ce.Markdown != "# ChatGPT Questions\n\n1. first" {
		t.Errorf("markdown: got %q", ce.Markdown)
	}
	if !strings.Contains(err.Error(), "no clipboard") {
		t.Errorf("error text: got %q", err.Error())
	}
}

func TestExport_DetailedBodies(t *testing.T) {
	bodies := map[string]string{
		"cgpt-anchor-1": `<div><p>Use <code>slices.Reverse</code>.</p><script>alert(1)</script></div>`,
	}
	body := func(id string) (string, error) {
		if b, ok := bodies[id]; ok {
			return b, nil
		}
		return "", fmt.Errorf("no element for %q", id)
	}
	m := New(Config{Detailed: true, Logger: quiet()})
	md, err := m.Render(context.Background(), items, body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "## 1. How do I reverse a list?") || !strings.Contains(md, "## 2. And a map?") {
		t.Errorf("headings missing:\n%s", md)
	}
	if !strings.Contains(md, "`slices.Reverse`") {
		t.Errorf("body not converted:\n%s", md)
	}
	if strings.Contains(md, "alert(1)") {
		t.Errorf("script survived sanitising:\n%s", md)
	}
}

func TestExport_DetailedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(Config{Detailed: true, Logger: quiet()})
	_, err := m.Render(ctx, items, func(string) (string, error) { return "<p>x</p>", nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Render: got %v, want context.Canceled", err)
	}
}

func TestCopyText_FallsBackToOSC52(t *testing.T) {
	oldSys, oldOSC := systemWrite, osc52Write
	t.Cleanup(func() { systemWrite, osc52Write = oldSys, oldOSC })

	var viaOSC string
	systemWrite = func(string) error { return errors.New("exit status 1") }
	osc52Write = func(s string) error { viaOSC = s; return nil }
	if err := CopyText("hello"); err != nil {
		t.Fatalf("CopyText: %v", err)
	}
	if viaOSC != "hello" {
		t.Errorf("OSC52 text: got %q", viaOSC)
	}

	osc52Write = func(string) error { return errors.New("no tty") }
	if err := CopyText("hello"); err == nil || !strings.Contains(err.Error(), "no tty") {
		t.Errorf("CopyText: got %v, want both failures reported", err)
	}
}

func TestWriteOSC52_Tmux(t *testing.T) {
	t.Setenv("TMUX", "/tmp/tmux-1000/default,1,0")
	t.Setenv("TERM", "tmux-256color")
	var buf bytes.Buffer
	if err := writeOSC52(&buf, "hi"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, "]52;") != 2 {
		t.Errorf("sequences: got %q, want plain and tmux-wrapped", out)
	}
	if !strings.Contains(out, "\x1bPtmux;") {
		t.Errorf("tmux passthrough missing: %q", out)
	}
}

func TestAttemptOSC52(t *testing.T) {
	t.Setenv("CHATTOC_DISABLE_OSC52", "")
	t.Setenv("TERM", "dumb")
	if attemptOSC52() {
		t.Error("dumb terminal: got true")
	}
	t.Setenv("TERM", "xterm-256color")
	if !attemptOSC52() {
		t.Error("xterm: got false")
	}
	t.Setenv("CHATTOC_DISABLE_OSC52", "yes")
	if attemptOSC52() {
		t.Error("disabled: got true")
	}
}
