package transcriber

import (
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		c := do.MustInvoke[*config.ServerConfig](i)
		model := do.MustInvoke[Model](i)
		return NewService(model, ServiceConfig{
			UseFastPath: c.TranscribeFastPath,
			Timeout:     c.TranscribeTimeout,
		}), nil
	})
}
