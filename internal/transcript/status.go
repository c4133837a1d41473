package transcript

import "strings"

// Status values reported to sinks.
const (
	StatusConnecting = "connecting"
	StatusRecording  = "recording"
	StatusStopped    = "stopped"

	disconnectedPrefix = "disconnected: "
)

func Disconnected(err error) string {
	return disconnectedPrefix + err.Error()
}

// DisconnectReason returns the error text of a Disconnected status.
func DisconnectReason(status string) (string, bool) {
	if !strings.HasPrefix(status, disconnectedPrefix) {
		return "", false
	}
	return strings.TrimPrefix(status, disconnectedPrefix), true
}
