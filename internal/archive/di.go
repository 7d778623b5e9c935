package archive

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/discord"
	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/foxseedlab/livescribe/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (session.Observer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := do.Invoke[repository.Repository](i)
		if err != nil {
			return nil, err
		}
		return NewRecorder(
			repo,
			do.MustInvoke[webhook.Sender](i),
			do.MustInvoke[discord.Client](i),
			Options{
				DiscordChannelID:    cfg.DiscordTranscriptChannelID,
				ShowPoweredBy:       cfg.DiscordShowPoweredBy,
				Timezone:            cfg.TranscriptTimezone,
				SummaryTriggerChars: cfg.SummaryTriggerChars,
			},
		), nil
	})
}
