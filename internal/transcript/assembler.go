package transcript

import (
	"strings"
	"sync"
)

// Sink observes transcript changes, e.g. a terminal view or a chat mirror.
type Sink interface {
	AppendText(text string)
	SetStatus(status string)
}

// Assembler accumulates replies in arrival order, separated by a single space.
type Assembler struct {
	mu        sync.Mutex
	text      strings.Builder
	fragments int
	status    string
	sinks     []Sink
}

func NewAssembler(sinks ...Sink) *Assembler {
	return &Assembler{sinks: sinks}
}

func (a *Assembler) Append(text string) {
	a.mu.Lock()
	if a.fragments > 0 {
		a.text.WriteByte(' ')
	}
	a.text.WriteString(text)
	a.fragments++
	a.mu.Unlock()

	for _, s := range a.sinks {
		s.AppendText(text)
	}
}

func (a *Assembler) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

func (a *Assembler) Fragments() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fragments
}

func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text.Reset()
	a.fragments = 0
}

func (a *Assembler) SetStatus(status string) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()

	for _, s := range a.sinks {
		s.SetStatus(status)
	}
}

func (a *Assembler) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}
