package repository

import "time"

type SessionStatus string

const (
	SessionStatusStreaming SessionStatus = "streaming"
	SessionStatusClosed    SessionStatus = "closed"
)

// Session is the journal entry for one streaming connection. Transcribed
// text is never stored.
type Session struct {
	ID             string
	RemoteAddr     string
	AckMode        bool
	Status         SessionStatus
	StartedAt      time.Time
	EndedAt        *time.Time
	BlocksReceived int64
	RepliesSent    int64
	EmptyResults   int64
	DecodeErrors   int64
	CloseCode      int
	CloseReason    string
}
