package bundler

import "go.uber.org/fx"

// Module exposes the bundler client and submission service via Fx.
var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewService),
)
