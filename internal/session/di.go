package session

import (
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/foxseedlab/mojiokoshin-live/internal/metrics"
	"github.com/foxseedlab/mojiokoshin-live/internal/repository"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.ServerConfig](i)
		stt := do.MustInvoke[*transcriber.Service](i)
		repo := do.MustInvoke[repository.Repository](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(Config{
			ContextOverlap:  cfg.ContextOverlap,
			MaxMessageBytes: cfg.MaxMessageBytes,
		}, stt, repo, m), nil
	})
}
