//go:build !cgo

package capture

import (
	"errors"

	"github.com/foxseedlab/mojiokoshin-live/internal/audio"
	"github.com/foxseedlab/mojiokoshin-live/internal/capture"
)

var errCaptureUnavailable = errors.New("audio capture requires a cgo build")

type unavailableSource struct{}

func NewMalgoSource(_, _ int) capture.Source {
	return &unavailableSource{}
}

func (s *unavailableSource) Start(_ func(audio.Block)) error {
	return errCaptureUnavailable
}

func (s *unavailableSource) Stop() error {
	return nil
}
