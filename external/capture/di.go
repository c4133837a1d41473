package capture

import (
	"github.com/foxseedlab/mojiokoshin-live/internal/capture"
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (capture.Source, error) {
		c := do.MustInvoke[*config.RecorderConfig](i)
		return NewMalgoSource(c.CaptureSampleRate, c.CaptureBlockSize), nil
	})
}
