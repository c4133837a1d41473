package discord

import (
	"fmt"

	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
)

const (
	msgRecordingStarted = "文字起こしを開始しました。"
	msgRecordingStopped = "文字起こしを終了しました。"
	msgTranscriptFile   = "文字起こし結果を添付します。"
	msgEmptyTranscript  = "文字起こし結果はありませんでした。"
)

// statusMessage returns the channel message for a status, or "" when the
// status is not worth posting.
func statusMessage(status string) string {
	switch status {
	case transcript.StatusRecording:
		return msgRecordingStarted
	case transcript.StatusStopped:
		return msgRecordingStopped
	case transcript.StatusConnecting:
		return ""
	}
	if reason, ok := transcript.DisconnectReason(status); ok {
		return fmt.Sprintf("サーバーとの接続が切断されました（%s）。", reason)
	}
	return status
}
