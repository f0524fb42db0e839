package tab

import "go.uber.org/fx"

// Module provides the tab service to Fx.
var Module = fx.Provide(NewService)
