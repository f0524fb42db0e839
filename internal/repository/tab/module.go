package tab

import "go.uber.org/fx"

// Module provides the tab repository to Fx.
var Module = fx.Provide(NewRepository)
