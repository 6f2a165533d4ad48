package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

var (
	systemWrite = clipboard.WriteAll
	osc52Write  = writeOSC52Clipboard
)

// CopyText writes text to the system clipboard, then falls back to an
// OSC52 escape on the controlling terminal.
func CopyText(text string) error {
	err := systemWrite(text)
	if err == nil {
		return nil
	}
	oscErr := osc52Write(text)
	if oscErr == nil {
		return nil
	}
	return combineErrors(err, oscErr)
}

func writeOSC52Clipboard(text string) error {
	if !attemptOSC52() {
		return errors.New("OSC52 unavailable for this terminal")
	}
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()
	return writeOSC52(tty, text)
}

// writeOSC52 emits the sequence, wrapped for tmux or screen when needed.
// Under tmux both the plain and wrapped forms are sent.
func writeOSC52(w io.Writer, text string) error {
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	seq := osc52.New(text)
	switch {
	case os.Getenv("TMUX") != "":
		if _, err := seq.WriteTo(w); err != nil {
			return err
		}
		_, err := seq.Tmux().WriteTo(w)
		return err
	case strings.HasPrefix(term, "screen"):
		_, err := seq.Screen().WriteTo(w)
		return err
	}
	_, err := seq.WriteTo(w)
	return err
}

func attemptOSC52() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("CHATTOC_DISABLE_OSC52"))) {
	case "1", "true", "yes", "on":
		return false
	}
	term := strings.TrimSpace(os.Getenv("TERM"))
	return term != "" && !strings.EqualFold(term, "dumb")
}

func combineErrors(systemErr, oscErr error) error {
	if missingDisplay() {
		return fmt.Errorf("no GUI clipboard (DISPLAY/WAYLAND_DISPLAY unset); OSC52 fallback failed: %v", oscErr)
	}
	return fmt.Errorf("system clipboard failed: %v; OSC52 fallback failed: %v", systemErr, oscErr)
}

func missingDisplay() bool {
	return strings.TrimSpace(os.Getenv("DISPLAY")) == "" && strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) == ""
}
