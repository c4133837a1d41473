package webhook

import (
	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/foxseedlab/mojiokoshin-live/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (webhook.Sender, error) {
		c := do.MustInvoke[*config.RecorderConfig](i)
		return NewHTTPSender(c.TranscriptWebhookURL), nil
	})
}
