package webhook

import "context"

const TranscriptWebhookSchemaVersion = 1

// TranscriptWebhookPayload is posted once when a recording stops.
type TranscriptWebhookPayload struct {
	SchemaVersion   int    `json:"schema_version"`
	SessionID       string `json:"session_id"`
	ServerURL       string `json:"server_url"`
	StartAt         string `json:"start_at"`
	EndAt           string `json:"end_at"`
	DurationSeconds int64  `json:"duration_seconds"`
	Duration        string `json:"duration"`
	StopReason      string `json:"stop_reason"`
	FragmentCount   int    `json:"fragment_count"`
	BlocksSent      int64  `json:"blocks_sent"`
	BlocksDropped   uint64 `json:"blocks_dropped"`
	ReplyTimeouts   int64  `json:"reply_timeouts"`
	Transcript      string `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
