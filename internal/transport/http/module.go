package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/comanda/internal/transport/http/order"
	paymenttransport "github.com/Additional-Code/comanda/internal/transport/http/payment"
	tabtransport "github.com/Additional-Code/comanda/internal/transport/http/tab"
	tabletransport "github.com/Additional-Code/comanda/internal/transport/http/table"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	tabletransport.Module,
	ordertransport.Module,
	tabtransport.Module,
	paymenttransport.Module,
)
