package payment

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
	service "github.com/Additional-Code/comanda/internal/service/settlement"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/comanda/transport/http/payment")

// Handler exposes settlement endpoints over HTTP: order closing, payment
// capture, and the finalize fast path.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a settlement Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. The order-scoped
// settlement actions live under /orders next to the lifecycle routes.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/orders/:id/close", h.closeOrder)
	e.POST("/orders/:id/payment", h.recordPayment)
	e.POST("/orders/:id/finalize", h.finalizeSale)

	g := e.Group("/payments")
	g.POST("", h.createPayment)
	g.GET("", h.list)
	g.GET("/sales", h.salesTotal)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.updatePayment)
	g.DELETE("/:id", h.deletePayment)
	g.POST("/:id/confirm", h.confirmPayment)
	g.POST("/:id/decline", h.declinePayment)
	g.POST("/:id/refund", h.refundPayment)
}

type adjustmentPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	Justification string          `json:"justification"`
}

type paymentPayload struct {
	OrderID        int64           `json:"order_id"`
	Method         string          `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Note           string          `json:"note"`
	Installments   int             `json:"installments"`
	CardBrand      string          `json:"card_brand"`
	CardLastDigits string          `json:"card_last_digits"`
}

func (p paymentPayload) toInput() service.PaymentInput {
	return service.PaymentInput{
		Method:         entity.PaymentMethod(p.Method),
		Amount:         p.Amount,
		Note:           p.Note,
		Installments:   p.Installments,
		CardBrand:      p.CardBrand,
		CardLastDigits: p.CardLastDigits,
	}
}

func (h *Handler) closeOrder(c echo.Context) error {
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
		Surcharge *adjustmentPayload `json:"surcharge"`
		Discount  *adjustmentPayload `json:"discount"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	in := service.CloseInput{}
	if payload.Surcharge != nil {
		in.Surcharge = &service.Adjustment{Amount: payload.Surcharge.Amount, Justification: payload.Surcharge.Justification}
	}
	if payload.Discount != nil {
		in.Discount = &service.Adjustment{Amount: payload.Discount.Amount, Justification: payload.Discount.Justification}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "settlement.closeOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.CloseOrder(ctx, actorID, id, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) recordPayment(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload paymentPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "settlement.recordPayment", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	payment, err := h.svc.RecordPayment(ctx, actorID, id, payload.toInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewPaymentResponse(payment)).Build()
}

func (h *Handler) finalizeSale(c echo.Context) error {
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
		Method           string          `json:"method"`
		Tendered         decimal.Decimal `json:"tendered"`
		CustomerName     string          `json:"customer_name"`
		CustomerDocument string          `json:"customer_document"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "settlement.finalizeSale", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	receipt, err := h.svc.FinalizeSale(ctx, actorID, id, service.FinalizeInput{
		Method:           entity.PaymentMethod(payload.Method),
		Tendered:         payload.Tendered,
		CustomerName:     payload.CustomerName,
		CustomerDocument: payload.CustomerDocument,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewReceiptResponse(receipt)).Build()
}

func (h *Handler) createPayment(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload paymentPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	payment, err := h.svc.CreatePayment(c.Request().Context(), actorID, payload.OrderID, payload.toInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewPaymentResponse(payment)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	payment, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPaymentResponse(payment)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	if code := c.QueryParam("code"); code != "" {
		payment, err := h.svc.GetPaymentByCode(ctx, code)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewPaymentResponse(payment)).Build()
	}
	if orderParam := c.QueryParam("order_id"); orderParam != "" {
		orderID, err := strconv.ParseInt(orderParam, 10, 64)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid order_id", errorbank.WithCause(err))).Build()
		}
		payments, err := h.svc.ListPaymentsByOrder(ctx, orderID)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewPaymentResponses(payments)).Build()
	}
	if status := c.QueryParam("status"); status != "" {
		payments, err := h.svc.ListPaymentsByStatus(ctx, entity.PaymentStatus(status))
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewPaymentResponses(payments)).Build()
	}
	if method := c.QueryParam("method"); method != "" {
		payments, err := h.svc.ListPaymentsByMethod(ctx, entity.PaymentMethod(method))
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewPaymentResponses(payments)).Build()
	}
	if fromParam := c.QueryParam("from"); fromParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid from", errorbank.WithCause(err))).Build()
		}
		to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
		if err != nil {
			return b.WithError(errorbank.InvalidArgument("invalid to", errorbank.WithCause(err))).Build()
		}
		payments, err := h.svc.ListPaymentsByPeriod(ctx, from, to)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.NewPaymentResponses(payments)).Build()
	}

	return b.WithError(errorbank.InvalidArgument("a filter is required: code, order_id, status, method, or from/to")).Build()
}

func (h *Handler) salesTotal(c echo.Context) error {
	b := response.New(c)

	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid from", errorbank.WithCause(err))).Build()
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid to", errorbank.WithCause(err))).Build()
	}

	total, err := h.svc.SalesTotalForPeriod(c.Request().Context(), from, to)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"from": from, "to": to, "total": total}).Build()
}

func (h *Handler) updatePayment(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload paymentPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	payment, err := h.svc.UpdatePayment(c.Request().Context(), actorID, id, payload.toInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPaymentResponse(payment)).Build()
}

func (h *Handler) deletePayment(c echo.Context) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.svc.DeletePayment(c.Request().Context(), actorID, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) confirmPayment(c echo.Context) error {
	return h.transition(c, h.svc.ConfirmPayment)
}

func (h *Handler) declinePayment(c echo.Context) error {
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

	payment, err := h.svc.DeclinePayment(c.Request().Context(), actorID, id, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPaymentResponse(payment)).Build()
}

func (h *Handler) refundPayment(c echo.Context) error {
	return h.transition(c, h.svc.RefundPayment)
}

func (h *Handler) transition(c echo.Context, op func(ctx context.Context, actorID, paymentID int64) (*entity.Payment, error)) error {
	b := response.New(c)

	actorID, err := actorFromHeader(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := pathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	payment, err := op(c.Request().Context(), actorID, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewPaymentResponse(payment)).Build()
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
