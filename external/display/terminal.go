package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
)

// Terminal prints fragments inline and status changes on their own line.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	midLine bool
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) AppendText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.midLine {
		_, _ = io.WriteString(t.w, " ")
	}
	_, _ = io.WriteString(t.w, text)
	t.midLine = true
}

func (t *Terminal) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.midLine {
		_, _ = io.WriteString(t.w, "\n")
		t.midLine = false
	}
	_, _ = fmt.Fprintf(t.w, "[%s]\n", status)
}

var _ transcript.Sink = (*Terminal)(nil)
