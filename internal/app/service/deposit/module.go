package deposit

import "go.uber.org/fx"

// Module exposes the deposit matcher via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
