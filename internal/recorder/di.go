package recorder

import (
	"github.com/foxseedlab/mojiokoshin-live/internal/capture"
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcript"
	"github.com/foxseedlab/mojiokoshin-live/internal/webhook"
	"github.com/samber/do/v2"
)

// RegisterDI provides a *Controller. The caller provides the *transcript.Assembler
// since its sinks depend on which outputs are enabled.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.RecorderConfig](i)
		return NewController(Config{
			ServerURL:       cfg.ServerURL,
			AckMode:         cfg.AckMode,
			ReplyTimeout:    cfg.ReplyTimeout,
			AckReplyTimeout: cfg.AckReplyTimeout,
			QueueCapacity:   cfg.QueueCapacity,
		},
			do.MustInvoke[capture.Source](i),
			do.MustInvoke[*transcript.Assembler](i),
			do.MustInvoke[webhook.Sender](i),
		), nil
	})
}
