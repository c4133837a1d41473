//go:build cgo

package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"github.com/foxseedlab/mojiokoshin-live/internal/capture"
	"github.com/gen2brain/malgo"
)

const captureChannels = 1

var errAlreadyStarted = errors.New("capture already started")

type MalgoSource struct {
	sampleRate int
	blockSize  int

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	framer *capture.Framer
}

func NewMalgoSource(sampleRate, blockSize int) capture.Source {
	return &MalgoSource{
		sampleRate: sampleRate,
		blockSize:  blockSize,
	}
}

func (s *MalgoSource) Start(onBlock func(audio.Block)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		return errAlreadyStarted
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = captureChannels
	cfg.SampleRate = uint32(s.sampleRate)
	cfg.PeriodSizeInFrames = uint32(s.blockSize)

	framer := capture.NewFramer(s.sampleRate, s.blockSize, onBlock)
	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			framer.WriteBytes(input)
		},
	})
	if err != nil {
		freeContext(mctx)
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return fmt.Errorf("start capture device: %w", err)
	}

	s.ctx = mctx
	s.device = device
	s.framer = framer
	slog.Info("audio capture started", "sample_rate", s.sampleRate, "block_size", s.blockSize)
	return nil
}

func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}
	err := s.device.Stop()
	s.device.Uninit()
	freeContext(s.ctx)
	// The device no longer calls back, so the framer is safe to read.
	discarded := s.framer.Pending()
	s.device = nil
	s.ctx = nil
	s.framer = nil
	slog.Info("audio capture stopped", "discarded_samples", discarded)
	return err
}

func freeContext(mctx *malgo.AllocatedContext) {
	if mctx == nil {
		return
	}
	_ = mctx.Uninit()
	mctx.Free()
}
