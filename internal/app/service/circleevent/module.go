package circleevent

import "go.uber.org/fx"

// Module exposes the Circle event router via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
