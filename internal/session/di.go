package session

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Registry, error) {
		cfg := do.MustInvoke[*config.Config](i)
		engine := do.MustInvoke[transcriber.Transcriber](i)
		n := do.MustInvoke[notifier.Notifier](i)
		observer, err := do.Invoke[Observer](i)
		if err != nil {
			observer = NopObserver{}
		}
		return NewRegistry(OptionsFromConfig(cfg), engine, n, observer), nil
	})
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FlushThreshold:    cfg.FlushThresholdFragments,
		MaxPending:        cfg.MaxPendingFragments,
		StopTimeout:       cfg.StopTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReapInterval:      cfg.ReapInterval,
		TranscribeTimeout: cfg.TranscribeTimeout,
	}
}
