package user

import "go.uber.org/fx"

// Module exposes the user registry via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
