package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
)

// Model is a loaded speech model. It receives 16 kHz mono samples.
type Model interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, useFastPath bool) (string, error)
}

// ConcurrencySafe is implemented by models that may be called from several
// connections at once. Other models are serialized.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

type ServiceConfig struct {
	UseFastPath bool
	Timeout     time.Duration
}

// Service transcribes each block on its own; no context is carried between calls.
type Service struct {
	model     Model
	cfg       ServiceConfig
	serialize bool
	mu        sync.Mutex
}

func NewService(model Model, cfg ServiceConfig) *Service {
	serialize := true
	if cs, ok := model.(ConcurrencySafe); ok && cs.ConcurrencySafe() {
		serialize = false
	}
	return &Service{
		model:     model,
		cfg:       cfg,
		serialize: serialize,
	}
}

// Transcribe returns the recognized text and true, or false when there is no
// result. Model failures are logged and reported as no result.
func (s *Service) Transcribe(ctx context.Context, block audio.Block) (string, bool) {
	resampled := audio.Resample(block, audio.TargetSampleRate)
	if resampled.IsEmpty() {
		slog.Debug("skipping empty audio block", "sample_rate", block.SampleRate, "samples", len(block.Samples))
		return "", false
	}

	text, err := s.call(ctx, resampled.Samples)
	if err != nil {
		slog.Error("transcription failed", "error", err, "model", s.model.Name(), "samples", len(resampled.Samples))
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func (s *Service) call(ctx context.Context, samples []float32) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	return s.model.Transcribe(ctx, samples, s.cfg.UseFastPath)
}
