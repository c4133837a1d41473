package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
)

// MaxContextOverlap caps how much of the previous block is carried into the next one.
const MaxContextOverlap = 10 * time.Second

type ServerConfig struct {
	Env                        string
	ListenAddr                 string
	WSPath                     string
	TranscribeTimeout          time.Duration
	TranscribeFastPath         bool
	ContextOverlap             time.Duration
	MaxMessageBytes            int64
	TranscribeLanguage         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	GoogleCloudSpeechFastModel string
	DatabaseURL                string
}

func (c *ServerConfig) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with '/', got %q", c.WSPath)
	}
	if c.TranscribeTimeout <= 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT must be positive, got %s", c.TranscribeTimeout)
	}
	if c.ContextOverlap < 0 || c.ContextOverlap > MaxContextOverlap {
		return fmt.Errorf("CONTEXT_OVERLAP_MS must be in 0..%d, got %s", MaxContextOverlap.Milliseconds(), c.ContextOverlap)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *ServerConfig) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "WS_PATH", value: c.WSPath},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "GOOGLE_CLOUD_SPEECH_MODEL", value: c.GoogleCloudSpeechModel},
	}
}

func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type RecorderConfig struct {
	Env                  string
	ServerURL            string
	CaptureSampleRate    int
	CaptureBlockSize     int
	QueueCapacity        int
	ReplyTimeout         time.Duration
	AckMode              bool
	AckReplyTimeout      time.Duration
	Duration             time.Duration
	TranscriptWebhookURL string
	DiscordToken         string
	DiscordChannelID     string
}

func (c *RecorderConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("SERVER_URL is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("SERVER_URL must use ws or wss, got %q", c.ServerURL)
	}
	if !audio.ValidSampleRate(c.CaptureSampleRate) {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be in %d..%d, got %d", audio.MinSampleRate, audio.MaxSampleRate, c.CaptureSampleRate)
	}
	if c.CaptureBlockSize <= 0 {
		return fmt.Errorf("CAPTURE_BLOCK_SIZE must be positive, got %d", c.CaptureBlockSize)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("REPLY_TIMEOUT must be positive, got %s", c.ReplyTimeout)
	}
	if c.AckMode && c.AckReplyTimeout <= 0 {
		return fmt.Errorf("ACK_REPLY_TIMEOUT must be positive when ACK_MODE=true, got %s", c.AckReplyTimeout)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", c.Duration)
	}
	if c.DiscordToken != "" && c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}
	return nil
}

func (c *RecorderConfig) IsDevelopment() bool {
	return c.Env == "development"
}
