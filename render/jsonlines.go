package render

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/chattoc/outline"
)

// JSONLines writes one JSON object per event to an io.Writer (default
// os.Stdout): {"type":"init"} on every overlay (re)initialisation and
// {"type":"outline","data":{...}} per rendered list. As an
// outline.Notifier it adds {"type":"alert"} and {"type":"prompt"} lines.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines renderer. If w is nil, os.Stdout is used.
func NewJSONLines(w io.Writer) *JSONLines {
	if w == nil {
		w = os.Stdout
	}
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Init() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(envelope{Type: "init"})
}

func (j *JSONLines) Render(l outline.List) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(envelope{Type: "outline", Data: l})
}

type notice struct {
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
}

func (j *JSONLines) Alert(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enc.Encode(envelope{Type: "alert", Data: notice{Message: msg}})
}

func (j *JSONLines) Prompt(msg, text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enc.Encode(envelope{Type: "prompt", Data: notice{Message: msg, Text: text}})
}
