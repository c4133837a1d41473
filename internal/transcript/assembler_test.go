package transcript

import (
	"sync"
	"testing"
)

type recordingSink struct {
	mu       sync.Mutex
	texts    []string
	statuses []string
}

func (s *recordingSink) AppendText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *recordingSink) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func TestAssembler_JoinsWithSingleSpace(t *testing.T) {
	a := NewAssembler()
	a.Append("hello")
	a.Append("world")
	if got := a.Text(); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
	if a.Fragments() != 2 {
		t.Fatalf("expected 2 fragments, got %d", a.Fragments())
	}
}

func TestAssembler_KeepsFragmentsVerbatim(t *testing.T) {
	a := NewAssembler()
	a.Append(" leading")
	a.Append("trailing ")
	if got := a.Text(); got != " leading trailing " {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestAssembler_ResetStartsFresh(t *testing.T) {
	a := NewAssembler()
	a.Append("old")
	a.Reset()
	a.Append("new")
	if got := a.Text(); got != "new" {
		t.Fatalf("expected %q, got %q", "new", got)
	}
}

func TestAssembler_NotifiesSinks(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink)
	a.SetStatus("recording")
	a.Append("hi")

	if len(sink.texts) != 1 || sink.texts[0] != "hi" {
		t.Fatalf("unexpected sink texts: %v", sink.texts)
	}
	if len(sink.statuses) != 1 || sink.statuses[0] != "recording" {
		t.Fatalf("unexpected sink statuses: %v", sink.statuses)
	}
	if a.Status() != "recording" {
		t.Fatalf("unexpected status: %s", a.Status())
	}
}
