package settlement

import "go.uber.org/fx"

// Module provides the settlement service to Fx.
var Module = fx.Provide(NewService)
