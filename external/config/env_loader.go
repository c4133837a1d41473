package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/joho/godotenv"
)

type envServerConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	ListenAddr                 string        `env:"LISTEN_ADDR" envDefault:":8001"`
	WSPath                     string        `env:"WS_PATH" envDefault:"/ws/transcribe"`
	TranscribeTimeout          time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`
	TranscribeFastPath         bool          `env:"TRANSCRIBE_FAST_PATH" envDefault:"false"`
	ContextOverlapMS           int           `env:"CONTEXT_OVERLAP_MS" envDefault:"0"`
	MaxMessageBytes            int64         `env:"MAX_MESSAGE_BYTES" envDefault:"8388608"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"ja-JP"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"asia-northeast1"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_2"`
	GoogleCloudSpeechFastModel string        `env:"GOOGLE_CLOUD_SPEECH_FAST_MODEL"`
	DatabaseURL                string        `env:"DATABASE_URL"`
}

type envRecorderConfig struct {
	Env                  string        `env:"ENV" envDefault:"production"`
	ServerURL            string        `env:"SERVER_URL" envDefault:"ws://localhost:8001/ws/transcribe"`
	CaptureSampleRate    int           `env:"CAPTURE_SAMPLE_RATE" envDefault:"16000"`
	CaptureBlockSize     int           `env:"CAPTURE_BLOCK_SIZE" envDefault:"1024"`
	QueueCapacity        int           `env:"QUEUE_CAPACITY" envDefault:"64"`
	ReplyTimeout         time.Duration `env:"REPLY_TIMEOUT" envDefault:"2s"`
	AckMode              bool          `env:"ACK_MODE" envDefault:"false"`
	AckReplyTimeout      time.Duration `env:"ACK_REPLY_TIMEOUT" envDefault:"35s"`
	Duration             time.Duration `env:"RECORD_DURATION" envDefault:"0s"`
	TranscriptWebhookURL string        `env:"TRANSCRIPT_WEBHOOK_URL"`
	DiscordToken         string        `env:"DISCORD_TOKEN"`
	DiscordChannelID     string        `env:"DISCORD_CHANNEL_ID"`
}

// loadDotEnv reads .env when present. Real environment variables win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	return nil
}

func LoadServer() (*internalconfig.ServerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var raw envServerConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	// Checked before the conversion so a huge value cannot wrap around.
	if raw.ContextOverlapMS < 0 || int64(raw.ContextOverlapMS) > internalconfig.MaxContextOverlap.Milliseconds() {
		return nil, fmt.Errorf("CONTEXT_OVERLAP_MS must be in 0..%d, got %d", internalconfig.MaxContextOverlap.Milliseconds(), raw.ContextOverlapMS)
	}

	cfg := &internalconfig.ServerConfig{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		WSPath:                     raw.WSPath,
		TranscribeTimeout:          raw.TranscribeTimeout,
		TranscribeFastPath:         raw.TranscribeFastPath,
		ContextOverlap:             time.Duration(raw.ContextOverlapMS) * time.Millisecond,
		MaxMessageBytes:            raw.MaxMessageBytes,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		GoogleCloudSpeechFastModel: raw.GoogleCloudSpeechFastModel,
		DatabaseURL:                raw.DatabaseURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRecorder returns the recorder settings without validating them so that
// command-line flags can still override individual values.
func LoadRecorder() (*internalconfig.RecorderConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var raw envRecorderConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	return &internalconfig.RecorderConfig{
		Env:                  raw.Env,
		ServerURL:            raw.ServerURL,
		CaptureSampleRate:    raw.CaptureSampleRate,
		CaptureBlockSize:     raw.CaptureBlockSize,
		QueueCapacity:        raw.QueueCapacity,
		ReplyTimeout:         raw.ReplyTimeout,
		AckMode:              raw.AckMode,
		AckReplyTimeout:      raw.AckReplyTimeout,
		Duration:             raw.Duration,
		TranscriptWebhookURL: raw.TranscriptWebhookURL,
		DiscordToken:         raw.DiscordToken,
		DiscordChannelID:     raw.DiscordChannelID,
	}, nil
}
