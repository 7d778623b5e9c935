package notifier

import "github.com/samber/do/v2"

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Hub, error) {
		return NewHub(DefaultSubscriberBuffer), nil
	})
	do.Provide(injector, func(i do.Injector) (Notifier, error) {
		return do.MustInvoke[*Hub](i), nil
	})
}
