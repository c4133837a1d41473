package display

import (
	"bytes"
	"testing"
)

func TestTerminal_WritesFragmentsAndStatus(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.SetStatus("recording")
	term.AppendText("hello")
	term.AppendText("world")
	term.SetStatus("stopped")

	want := "[recording]\nhello world\n[stopped]\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}
