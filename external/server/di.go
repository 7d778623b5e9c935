package server

import (
	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewServer(
			do.MustInvoke[*session.Registry](i),
			do.MustInvoke[*notifier.Hub](i),
			do.MustInvoke[audio.DecoderFactory](i),
			cfg.ListenAddr(),
		), nil
	})
}
