package transcriber

import (
	"context"
	"time"

	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	"github.com/foxseedlab/mojiokoshin-live/internal/transcriber"
	"github.com/samber/do/v2"
)

const loadTimeout = 30 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*CloudSpeechModel, error) {
		c := do.MustInvoke[*config.ServerConfig](i)
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		return LoadCloudSpeech(ctx, CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.TranscribeLanguage,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
			FastModel:       c.GoogleCloudSpeechFastModel,
		})
	})
	do.Provide(injector, func(i do.Injector) (transcriber.Model, error) {
		return do.Invoke[*CloudSpeechModel](i)
	})
}
