package recorder

import (
	"fmt"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
	"github.com/foxseedlab/mojiokoshin-live/internal/webhook"
)

func buildTranscriptWebhookPayload(recordingID, serverURL string, startedAt, endedAt time.Time, reason string, stats Stats, assembler *transcript.Assembler) webhook.TranscriptWebhookPayload {
	elapsed := endedAt.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionID:       recordingID,
		ServerURL:       serverURL,
		StartAt:         startedAt.Format(time.RFC3339),
		EndAt:           endedAt.Format(time.RFC3339),
		DurationSeconds: int64(elapsed.Seconds()),
		Duration:        formatElapsedHMS(elapsed),
		StopReason:      reason,
		FragmentCount:   assembler.Fragments(),
		BlocksSent:      stats.BlocksSent,
		BlocksDropped:   stats.BlocksDropped,
		ReplyTimeouts:   stats.ReplyTimeouts,
		Transcript:      assembler.Text(),
	}
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// TranscriptFilename names the transcript attachment for a recording that started at t.
func TranscriptFilename(t time.Time) string {
	return fmt.Sprintf("transcript-%s.txt", t.Format("20060102-150405"))
}
