package discord

import (
	"log/slog"

	"github.com/foxseedlab/mojiokoshin-live/internal/config"
	discordpkg "github.com/foxseedlab/mojiokoshin-live/internal/discord"
	"github.com/samber/do/v2"
)

const mirrorBuffer = 256

// RegisterDI provides a *discordpkg.Mirror. Register it only when DISCORD_TOKEN is set.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*discordpkg.Mirror, error) {
		c := do.MustInvoke[*config.RecorderConfig](i)
		client, err := NewClient(c.DiscordToken)
		if err != nil {
			return nil, err
		}
		slog.Info("mirroring transcript to discord", "channel_id", c.DiscordChannelID, "channel_name", client.ResolveChannelName(c.DiscordChannelID))
		return discordpkg.NewMirror(client, c.DiscordChannelID, mirrorBuffer), nil
	})
}
