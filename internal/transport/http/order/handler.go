package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/comanda/internal/dto"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/presentation/http/response"
	service "github.com/Additional-Code/comanda/internal/service/order"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/comanda/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/active", h.listActive)
	g.GET("/kitchen", h.listKitchen)
	g.GET("/statistics", h.statistics)
	g.GET("/:id", h.getByID)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/items", h.addItem)
	g.DELETE("/:id/items/:itemID", h.removeItem)
	g.PATCH("/:id/items/:itemID", h.updateItemQuantity)
	g.PATCH("/:id/note", h.updateNote)
	g.POST("/:id/surcharge", h.applySurcharge)
	g.POST("/:id/discount", h.applyDiscount)
	g.POST("/:id/prepare", h.moveToPreparation)
	g.POST("/:id/ready", h.markReady)
	g.POST("/:id/deliver", h.markDelivered)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/reopen", h.reopen)
}

type itemPayload struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		TableID int64         `json:"table_id"`
		TabID   *int64        `json:"tab_id"`
		Note    string        `json:"note"`
		Items   []itemPayload `json:"items"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	in := service.CreateInput{
		TableID: payload.TableID,
		TabID:   payload.TabID,
		Note:    payload.Note,
	}
	for _, item := range payload.Items {
		in.Items = append(in.Items, service.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Note:      item.Note,
		})
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(attribute.Int64("table.id", payload.TableID)))
	defer span.End()

	order, err := h.svc.Create(ctx, actorID, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	if status := c.QueryParam("status"); status != "" {
		orders, err := h.svc.ListByStatus(ctx, entity.OrderStatus(status))
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewOrderResponses(orders)).Build()
	}
	if tableParam := c.QueryParam("table_id"); tableParam != "" {
		tableID, err := strconv.ParseInt(tableParam, 10, 64)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid table_id", errorbank.WithCause(err))).Build()
		}
		orders, err := h.svc.ListByTable(ctx, tableID)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewOrderResponses(orders)).Build()
	}
	if fromParam := c.QueryParam("from"); fromParam != "" {
		from, to, err := parsePeriod(fromParam, c.QueryParam("to"))
		if err != nil {
			return b.WithError(err).Build()
		}
		orders, err := h.svc.ListByPeriod(ctx, from, to)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewOrderResponses(orders)).Build()
	}

	orders, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).Build()
}

func (h *Handler) listActive(c echo.Context) error {
	b := response.New(c)
	orders, err := h.svc.ListActive(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).Build()
}

func (h *Handler) listKitchen(c echo.Context) error {
	b := response.New(c)
	orders, err := h.svc.ListKitchen(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).Build()
}

func (h *Handler) statistics(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	if dayParam := c.QueryParam("day"); dayParam != "" {
		day, err := time.Parse("2006-01-02", dayParam)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid day", errorbank.WithCause(err))).Build()
		}
		stats, err := h.svc.DailySummary(ctx, day)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(stats).Build()
	}

	from, to, err := parsePeriod(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return b.WithError(err).Build()
	}
	stats, err := h.svc.StatisticsForPeriod(ctx, from, to)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func (h *Handler) addItem(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload itemPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	order, err := h.svc.AddItem(c.Request().Context(), actorID, id, service.ItemInput{
		ProductID: payload.ProductID,
		Quantity:  payload.Quantity,
		Note:      payload.Note,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) removeItem(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	itemID, err := pathID(c, "itemID")
	if err != nil {
		return b.WithError(err).Build()
	}

	order, err := h.svc.RemoveItem(c.Request().Context(), actorID, id, itemID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) updateItemQuantity(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	itemID, err := pathID(c, "itemID")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	order, err := h.svc.UpdateItemQuantity(c.Request().Context(), actorID, id, itemID, payload.Quantity)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) updateNote(c echo.Context) error {
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
		Note string `json:"note"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	order, err := h.svc.UpdateNote(c.Request().Context(), actorID, id, payload.Note)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

type adjustmentPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	Justification string          `json:"justification"`
}

func (h *Handler) applySurcharge(c echo.Context) error {
	return h.applyAdjustment(c, h.svc.ApplySurcharge)
}

func (h *Handler) applyDiscount(c echo.Context) error {
	return h.applyAdjustment(c, h.svc.ApplyDiscount)
}

func (h *Handler) applyAdjustment(c echo.Context, apply func(ctx context.Context, actorID, orderID int64, amount decimal.Decimal, justification string) (*entity.Order, error)) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload adjustmentPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	order, err := apply(c.Request().Context(), actorID, id, payload.Amount, payload.Justification)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) moveToPreparation(c echo.Context) error {
	return h.transition(c, h.svc.MoveToPreparation)
}

func (h *Handler) markReady(c echo.Context) error {
	return h.transition(c, h.svc.MarkReady)
}

func (h *Handler) markDelivered(c echo.Context) error {
	return h.transition(c, h.svc.MarkDelivered)
}

func (h *Handler) transition(c echo.Context, step func(ctx context.Context, actorID, orderID int64) (*entity.Order, error)) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	order, err := step(c.Request().Context(), actorID, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	return h.withReason(c, h.svc.Cancel)
}

func (h *Handler) reopen(c echo.Context) error {
	return h.withReason(c, h.svc.Reopen)
}

func (h *Handler) withReason(c echo.Context, op func(ctx context.Context, actorID, orderID int64, reason string) (*entity.Order, error)) error {
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

	order, err := op(c.Request().Context(), actorID, id, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
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

// actorFromHeader reads the acting user from the X-Actor-ID header.
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

func parsePeriod(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errorbank.InvalidArgument("invalid from", errorbank.WithCause(err))
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errorbank.InvalidArgument("invalid to", errorbank.WithCause(err))
	}
	return from, to, nil
}
