package tab

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
	service "github.com/Additional-Code/comanda/internal/service/tab"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/comanda/transport/http/tab")

// Handler exposes tab endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a tab Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/tabs")
	g.POST("", h.open)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.GET("/:id/total", h.total)
	g.POST("/:id/orders/:orderID", h.attachOrder)
	g.DELETE("/:id/orders/:orderID", h.detachOrder)
	g.POST("/:id/close", h.close)
	g.POST("/:id/cancel", h.cancel)
}

func (h *Handler) open(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		TableID int64 `json:"table_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tabs.open", trace.WithAttributes(attribute.Int64("table.id", payload.TableID)))
	defer span.End()

	tab, err := h.svc.Open(ctx, actorID, payload.TableID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewTabResponse(tab)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	tab, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTabResponse(tab)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	if code := c.QueryParam("code"); code != "" {
		tab, err := h.svc.GetByCode(ctx, code)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewTabResponse(tab)).Build()
	}
	if status := c.QueryParam("status"); status != "" {
		tabs, err := h.svc.ListByStatus(ctx, entity.TabStatus(status))
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewTabResponses(tabs)).Build()
	}
	if tableParam := c.QueryParam("table_id"); tableParam != "" {
		tableID, err := strconv.ParseInt(tableParam, 10, 64)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid table_id", errorbank.WithCause(err))).Build()
		}
		tabs, err := h.svc.ListByTable(ctx, tableID)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewTabResponses(tabs)).Build()
	}

	tabs, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTabResponses(tabs)).Build()
}

func (h *Handler) total(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	total, err := h.svc.Total(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"tab_id": id, "total": total}).Build()
}

func (h *Handler) attachOrder(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	orderID, err := pathID(c, "orderID")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.svc.AttachOrder(c.Request().Context(), actorID, id, orderID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) detachOrder(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	orderID, err := pathID(c, "orderID")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.svc.DetachOrder(c.Request().Context(), actorID, id, orderID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) close(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	tab, err := h.svc.Close(c.Request().Context(), actorID, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTabResponse(tab)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
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
		Reason string `json:"reason"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	tab, err := h.svc.Cancel(c.Request().Context(), actorID, id, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTabResponse(tab)).Build()
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
