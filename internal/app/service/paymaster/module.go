package paymaster

import (
	"context"

	"go.uber.org/fx"
)

// Module exposes the sponsorship tracker and listener supervisor via Fx.
// Listeners start with the app lifecycle and stop on shutdown.
var Module = fx.Options(
	fx.Provide(NewTracker),
	fx.Provide(NewSupervisor),
	fx.Invoke(registerListeners),
)

func registerListeners(lc fx.Lifecycle, s *Supervisor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
