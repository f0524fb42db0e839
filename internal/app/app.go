package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/comanda/internal/cache"
	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/logger"
	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
	"github.com/Additional-Code/comanda/internal/observability"
	repositorycatalog "github.com/Additional-Code/comanda/internal/repository/catalog"
	repositoryorder "github.com/Additional-Code/comanda/internal/repository/order"
	repositorypayment "github.com/Additional-Code/comanda/internal/repository/payment"
	repositorytab "github.com/Additional-Code/comanda/internal/repository/tab"
	repositorytable "github.com/Additional-Code/comanda/internal/repository/table"
	repositoryuser "github.com/Additional-Code/comanda/internal/repository/user"
	grpcserver "github.com/Additional-Code/comanda/internal/server/grpc"
	httpserver "github.com/Additional-Code/comanda/internal/server/http"
	serviceorder "github.com/Additional-Code/comanda/internal/service/order"
	servicesettlement "github.com/Additional-Code/comanda/internal/service/settlement"
	servicetab "github.com/Additional-Code/comanda/internal/service/tab"
	servicetable "github.com/Additional-Code/comanda/internal/service/table"
	transporthttp "github.com/Additional-Code/comanda/internal/transport/http"
	"github.com/Additional-Code/comanda/internal/worker"
	workernotification "github.com/Additional-Code/comanda/internal/worker/notification"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	notifier.Module,
	observability.Module,
	repositorytable.Module,
	repositoryorder.Module,
	repositorytab.Module,
	repositorypayment.Module,
	repositorycatalog.Module,
	repositoryuser.Module,
	servicetable.Module,
	serviceorder.Module,
	servicetab.Module,
	servicesettlement.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workernotification.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
