package cctp

import "go.uber.org/fx"

// Module exposes the CCTP correlator via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
