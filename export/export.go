// Package export turns the outline into Markdown and hands it to the
// user through the clipboard, falling back to a manual-copy prompt.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/chattoc/outline"
)

// DefaultTitle heads the exported document.
const DefaultTitle = "ChatGPT Questions"

// MsgManualCopy accompanies the text when the clipboard is unavailable.
const MsgManualCopy = "Copy the outline below:"

// ErrClipboard is returned when neither clipboard path accepted the text.
var ErrClipboard = errors.New("export: clipboard unavailable")

// ClipboardError carries the Markdown that could not be copied, so callers
// without a Notifier can still hand it to the user. It matches
// ErrClipboard under errors.Is.
type ClipboardError struct {
	Markdown string
	Err      error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("%v: %v", ErrClipboard, e.Err)
}

func (e *ClipboardError) Unwrap() []error { return []error{ErrClipboard, e.Err} }

// Config configures a Markdown exporter.
type Config struct {
	Title string // Default: DefaultTitle
	// Detailed appends each message body, converted to Markdown, under
	// its entry.
	Detailed bool
	// Notifier receives the manual-copy prompt. Optional: the text also
	// travels in the returned *ClipboardError.
	Notifier outline.Notifier
	// Clipboard writes text to the clipboard. Default: system clipboard,
	// then OSC52 on the controlling terminal.
	Clipboard func(string) error
	Logger    *slog.Logger
}

// Markdown is an outline.Exporter.
type Markdown struct {
	title    string
	detailed bool
	notify   outline.Notifier
	copy     func(string) error
	logger   *slog.Logger
	conv     *converter.Converter
	policy   *bluemonday.Policy
}

// New creates a Markdown exporter.
func New(cfg Config) *Markdown {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Clipboard == nil {
		cfg.Clipboard = CopyText
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Markdown{
		title:    cfg.Title,
		detailed: cfg.Detailed,
		notify:   cfg.Notifier,
		copy:     cfg.Clipboard,
		logger:   cfg.Logger,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Export renders items and copies the result. When the clipboard refuses
// it, the text goes to the Notifier's prompt and the error wraps
// ErrClipboard.
func (m *Markdown) Export(ctx context.Context, items []outline.Item, body outline.BodyFunc) error {
	md, err := m.Render(ctx, items, body)
	if err != nil {
		return err
	}
	if err := m.copy(md); err != nil {
		m.logger.Warn("export: clipboard failed, prompting", "error", err)
		if m.notify != nil {
			m.notify.Prompt(MsgManualCopy, md)
		}
		return &ClipboardError{Markdown: md, Err: err}
	}
	m.logger.Info("export: copied", "items", len(items), "bytes", len(md))
	return nil
}

// Render builds the Markdown document. body may be nil unless the
// exporter is detailed.
func (m *Markdown) Render(ctx context.Context, items []outline.Item, body outline.BodyFunc) (string, error) {
	if !m.detailed || body == nil {
		lines := make([]string, len(items))
		for i, it := range items {
			lines[i] = fmt.Sprintf("%d. %s", i+1, it.Label)
		}
		return "# " + m.title + "\n\n" + strings.Join(lines, "\n"), nil
	}

	var b strings.Builder
	b.WriteString("# " + m.title + "\n")
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n## %d. %s\n", i+1, it.Label)
		text, err := m.convert(body, it.ID)
		if err != nil {
			m.logger.Warn("export: message body", "id", it.ID, "error", err)
			continue
		}
		if text != "" {
			b.WriteString("\n" + text + "\n")
		}
	}
	return b.String(), nil
}

func (m *Markdown) convert(body outline.BodyFunc, id string) (string, error) {
	raw, err := body(id)
	if err != nil {
		return "", err
	}
	clean := m.policy.Sanitize(raw)
	md, err := m.conv.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("export: convert %s: %w", id, err)
	}
	return strings.TrimSpace(md), nil
}
