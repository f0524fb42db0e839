package table

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/comanda/internal/dto"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/presentation/http/response"
	service "github.com/Additional-Code/comanda/internal/service/table"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/comanda/transport/http/table")

// Handler exposes table registry endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a table Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/tables")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id/status", h.setStatus)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Number int    `json:"number"`
		Note   string `json:"note"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.create", trace.WithAttributes(attribute.Int("table.number", payload.Number)))
	defer span.End()

	table, err := h.svc.Create(ctx, actorID, payload.Number, payload.Note)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewTableResponse(table)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	table, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTableResponse(table)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	if status := c.QueryParam("status"); status != "" {
		tables, err := h.svc.ListByStatus(ctx, entity.TableStatus(status))
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewTableResponses(tables)).Build()
	}
	if numberParam := c.QueryParam("number"); numberParam != "" {
		number, err := strconv.Atoi(numberParam)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid number", errorbank.WithCause(err))).Build()
		}
		table, err := h.svc.GetByNumber(ctx, number)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewTableResponse(table)).Build()
	}

	tables, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTableResponses(tables)).Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	table, err := h.svc.SetStatus(c.Request().Context(), actorID, id, entity.TableStatus(payload.Status))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTableResponse(table)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.svc.Delete(c.Request().Context(), actorID, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func actorFromHeader(c echo.Context) (int64, error) {
	raw := c.Request().Header.Get("X-Actor-ID")
	if raw == "" {
		return 0, errorbank.InvalidArgument("X-Actor-ID header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.InvalidArgument("invalid X-Actor-ID header")
	}
	return id, nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errorbank.InvalidArgument("invalid "+name, errorbank.WithCause(err))
	}
	return id, nil
}
