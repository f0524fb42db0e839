package settlement

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/notifier"
	orderrepo "github.com/Additional-Code/comanda/internal/repository/order"
	paymentrepo "github.com/Additional-Code/comanda/internal/repository/payment"
	tabrepo "github.com/Additional-Code/comanda/internal/repository/tab"
	tablerepo "github.com/Additional-Code/comanda/internal/repository/table"
	userrepo "github.com/Additional-Code/comanda/internal/repository/user"
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/comanda/service/settlement")

// Service turns delivered orders into money: closing, payment capture, the
// combined finalize path, and refunds. It is the only writer of payments.
type Service struct {
	conns        *database.Connections
	orders       *orderrepo.Repository
	payments     *paymentrepo.Repository
	tables       *tablerepo.Repository
	tabs         *tabrepo.Repository
	users        *userrepo.Repository
	refundWindow time.Duration
	notifier     *notifier.Notifier
	logger       *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Orders      *orderrepo.Repository
	Payments    *paymentrepo.Repository
	Tables      *tablerepo.Repository
	Tabs        *tabrepo.Repository
	Users       *userrepo.Repository
	Config      config.Config
	Notifier    *notifier.Notifier
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	window := p.Config.Settlement.RefundWindow
	if window <= 0 {
		window = config.DefaultRefundWindow
	}
	return &Service{
		conns:        p.Connections,
		orders:       p.Orders,
		payments:     p.Payments,
		tables:       p.Tables,
		tabs:         p.Tabs,
		users:        p.Users,
		refundWindow: window,
		notifier:     p.Notifier,
		logger:       p.Logger,
	}
}

// Adjustment is an optional last-minute surcharge or discount applied while
// closing an order.
type Adjustment struct {
	Amount        decimal.Decimal
	Justification string
}

// CloseInput carries the optional final adjustments for CloseOrder.
type CloseInput struct {
	Surcharge *Adjustment
	Discount  *Adjustment
}

// PaymentInput describes a payment to record against an order.
type PaymentInput struct {
	Method         entity.PaymentMethod
	Amount         decimal.Decimal
	Note           string
	Installments   int
	CardBrand      string
	CardLastDigits string
}

// FinalizeInput describes a finalized sale: how the customer pays and who
// the receipt is issued to. Customer fields are optional.
type FinalizeInput struct {
	Method           entity.PaymentMethod
	Tendered         decimal.Decimal
	CustomerName     string
	CustomerDocument string
}

// Receipt is the settlement summary handed back after a finalized sale.
type Receipt struct {
	OrderID          int64                `json:"order_id"`
	TableID          int64                `json:"table_id"`
	TableNumber      int                  `json:"table_number"`
	TransactionCode  string               `json:"transaction_code"`
	CustomerName     string               `json:"customer_name,omitempty"`
	CustomerDocument string               `json:"customer_document,omitempty"`
	Items            []*entity.OrderItem  `json:"items"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	Surcharge        decimal.Decimal      `json:"surcharge"`
	Discount         decimal.Decimal      `json:"discount"`
	Total            decimal.Decimal      `json:"total"`
	Method           entity.PaymentMethod `json:"method"`
	Tendered         decimal.Decimal      `json:"tendered"`
	Change           decimal.Decimal      `json:"change"`
	IssuedAt         time.Time            `json:"issued_at"`
}

// CloseOrder moves a non-terminal order to CLOSED, applying any final
// adjustments first so they land in the frozen total. The table is freed
// when nothing else holds it.
func (s *Service) CloseOrder(ctx context.Context, actorID, orderID int64, in CloseInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "SettlementService.CloseOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := entity.ValidateTransition(order.Status, entity.OrderClosed); err != nil {
			return err
		}
		if in.Surcharge != nil {
			if err := order.ApplySurcharge(in.Surcharge.Amount, in.Surcharge.Justification); err != nil {
				return err
			}
		}
		if in.Discount != nil {
			if err := order.ApplyDiscount(in.Discount.Amount, in.Discount.Justification); err != nil {
				return err
			}
		}
		order.Close(time.Now().UTC())
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to close order", errorbank.WithCause(err))
		}
		return s.releaseTableIfIdle(ctx, tx, order.TableID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.OrderClosed, order)
	return order, nil
}

// RecordPayment captures payment for an order that is already CLOSED. The
// amount must match the frozen order total exactly; anything else is
// rejected with both values in the error.
func (s *Service) RecordPayment(ctx context.Context, actorID, orderID int64, in PaymentInput) (*entity.Payment, error) {
	ctx, span := serviceTracer.Start(ctx, "SettlementService.RecordPayment", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if err := validatePaymentInput(in); err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderClosed {
			return errorbank.InvalidState("order must be closed before payment",
				errorbank.WithDetail("status", string(order.Status)))
		}
		if !in.Amount.Equal(order.Total) {
			return errorbank.InvalidArgument("payment amount must match the order total",
				errorbank.WithDetail("amount", in.Amount.String()),
				errorbank.WithDetail("total", order.Total.String()))
		}
		approved, err := s.payments.ApprovedExistsForOrder(ctx, tx, orderID)
		if err != nil {
			return errorbank.Internal("failed to check existing payments", errorbank.WithCause(err))
		}
		if approved {
			return errorbank.Conflict("order already has an approved payment",
				errorbank.WithDetail("order_id", orderID))
		}

		now := time.Now().UTC()
		payment = &entity.Payment{
			OrderID:         orderID,
			Method:          in.Method,
			Amount:          in.Amount,
			Status:          entity.PaymentApproved,
			TransactionCode: newTransactionCode(),
			Note:            in.Note,
			Installments:    in.Installments,
			CardBrand:       in.CardBrand,
			CardLastDigits:  in.CardLastDigits,
			CreatedAt:       now,
			ConfirmedAt:     &now,
		}
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to record payment", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record payment failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.PaymentProcessed, payment)
	return payment, nil
}

// FinalizeSale is the walk-in fast path: close the order and capture an
// approved payment in one transaction, returning a receipt with the change
// due. Tendered money below the total is rejected.
func (s *Service) FinalizeSale(ctx context.Context, actorID, orderID int64, in FinalizeInput) (*Receipt, error) {
	ctx, span := serviceTracer.Start(ctx, "SettlementService.FinalizeSale", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if !entity.ValidPaymentMethod(in.Method) {
		return nil, errorbank.InvalidArgument("unknown payment method",
			errorbank.WithDetail("method", string(in.Method)))
	}

	var receipt *Receipt
	var payment *entity.Payment
	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := entity.ValidateTransition(order.Status, entity.OrderClosed); err != nil {
			return err
		}
		if in.Tendered.LessThan(order.Total) {
			return errorbank.InvalidArgument("tendered amount is below the order total",
				errorbank.WithDetail("tendered", in.Tendered.String()),
				errorbank.WithDetail("total", order.Total.String()))
		}
		table, err := s.tables.Get(ctx, tx, order.TableID)
		if err != nil {
			return errorbank.Internal("failed to load table", errorbank.WithCause(err))
		}

		now := time.Now().UTC()
		order.Close(now)
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to close order", errorbank.WithCause(err))
		}

		payment = &entity.Payment{
			OrderID:         orderID,
			Method:          in.Method,
			Amount:          order.Total,
			Status:          entity.PaymentApproved,
			TransactionCode: newTransactionCode(),
			CreatedAt:       now,
			ConfirmedAt:     &now,
		}
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to record payment", errorbank.WithCause(err))
		}

		receipt = &Receipt{
			OrderID:          order.ID,
			TableID:          table.ID,
			TableNumber:      table.Number,
			TransactionCode:  payment.TransactionCode,
			CustomerName:     in.CustomerName,
			CustomerDocument: in.CustomerDocument,
			Items:            order.Items,
			Subtotal:         order.Subtotal,
			Surcharge:        order.Surcharge,
			Discount:         order.Discount,
			Total:            order.Total,
			Method:           in.Method,
			Tendered:         in.Tendered,
			Change:           ComputeChange(order.Total, in.Tendered),
			IssuedAt:         now,
		}
		return s.releaseTableIfIdle(ctx, tx, order.TableID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.OrderClosed, order)
	s.notifier.Publish(ctx, notifier.PaymentProcessed, payment)
	return receipt, nil
}

// ComputeChange is tendered minus total. Callers validate tendered >= total.
func ComputeChange(total, tendered decimal.Decimal) decimal.Decimal {
	return tendered.Sub(total)
}

// CreatePayment registers a PENDING payment against a closed order for
// deferred capture, for example a card authorization awaiting confirmation.
func (s *Service) CreatePayment(ctx context.Context, actorID, orderID int64, in PaymentInput) (*entity.Payment, error) {
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if err := validatePaymentInput(in); err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderClosed {
			return errorbank.InvalidState("order must be closed before payment",
				errorbank.WithDetail("status", string(order.Status)))
		}
		if !in.Amount.Equal(order.Total) {
			return errorbank.InvalidArgument("payment amount must match the order total",
				errorbank.WithDetail("amount", in.Amount.String()),
				errorbank.WithDetail("total", order.Total.String()))
		}

		payment = &entity.Payment{
			OrderID:         orderID,
			Method:          in.Method,
			Amount:          in.Amount,
			Status:          entity.PaymentPending,
			TransactionCode: newTransactionCode(),
			Note:            in.Note,
			Installments:    in.Installments,
			CardBrand:       in.CardBrand,
			CardLastDigits:  in.CardLastDigits,
			CreatedAt:       time.Now().UTC(),
		}
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to create payment", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ConfirmPayment approves a PENDING payment and stamps the confirmation time
// that the refund window counts from.
func (s *Service) ConfirmPayment(ctx context.Context, actorID, paymentID int64) (*entity.Payment, error) {
	ctx, span := serviceTracer.Start(ctx, "SettlementService.ConfirmPayment", trace.WithAttributes(attribute.Int64("payment.id", paymentID)))
	defer span.End()

	payment, err := s.transitionPayment(ctx, actorID, paymentID, entity.PaymentPending, entity.PaymentApproved)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return nil, err
	}
	s.notifier.Publish(ctx, notifier.PaymentProcessed, payment)
	return payment, nil
}

// DeclinePayment moves a PENDING payment to DECLINED. The reason is
// mandatory and lands in the payment note as an audit trail.
func (s *Service) DeclinePayment(ctx context.Context, actorID, paymentID int64, reason string) (*entity.Payment, error) {
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, errorbank.InvalidArgument("decline reason is required")
	}

	var payment *entity.Payment
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = s.getPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != entity.PaymentPending {
			return errorbank.InvalidState("payment is not in the expected status",
				errorbank.WithDetail("current", string(payment.Status)),
				errorbank.WithDetail("expected", string(entity.PaymentPending)))
		}
		payment.Status = entity.PaymentDeclined
		if payment.Note != "" {
			payment.Note += " | "
		}
		payment.Note += "DECLINED: " + reason
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to update payment", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(ctx, notifier.PaymentDeclined, payment)
	return payment, nil
}

// RefundPayment reverses an APPROVED payment. Only payments confirmed within
// the refund window qualify.
func (s *Service) RefundPayment(ctx context.Context, actorID, paymentID int64) (*entity.Payment, error) {
	ctx, span := serviceTracer.Start(ctx, "SettlementService.RefundPayment", trace.WithAttributes(attribute.Int64("payment.id", paymentID)))
	defer span.End()

	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = s.getPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != entity.PaymentApproved {
			return errorbank.InvalidState("only approved payments can be refunded",
				errorbank.WithDetail("status", string(payment.Status)))
		}
		now := time.Now().UTC()
		if payment.ConfirmedAt == nil || now.Sub(*payment.ConfirmedAt) > s.refundWindow {
			return errorbank.InvalidState("payment is outside the refund window",
				errorbank.WithDetail("window", s.refundWindow.String()))
		}
		payment.Status = entity.PaymentRefunded
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to refund payment", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund failed")
		return nil, err
	}

	s.notifier.Publish(ctx, notifier.PaymentRefunded, payment)
	return payment, nil
}

// UpdatePayment edits the mutable fields of a payment that is still PENDING.
func (s *Service) UpdatePayment(ctx context.Context, actorID, paymentID int64, in PaymentInput) (*entity.Payment, error) {
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}
	if !entity.ValidPaymentMethod(in.Method) {
		return nil, errorbank.InvalidArgument("unknown payment method",
			errorbank.WithDetail("method", string(in.Method)))
	}

	var payment *entity.Payment
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = s.getPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != entity.PaymentPending {
			return errorbank.InvalidState("only pending payments can be edited",
				errorbank.WithDetail("status", string(payment.Status)))
		}
		payment.Method = in.Method
		payment.Note = in.Note
		payment.Installments = in.Installments
		payment.CardBrand = in.CardBrand
		payment.CardLastDigits = in.CardLastDigits
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to update payment", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// DeletePayment removes a payment that is still PENDING.
func (s *Service) DeletePayment(ctx context.Context, actorID, paymentID int64) error {
	if err := s.requireActor(ctx, actorID); err != nil {
		return err
	}

	return s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		payment, err := s.getPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != entity.PaymentPending {
			return errorbank.InvalidState("only pending payments can be deleted",
				errorbank.WithDetail("status", string(payment.Status)))
		}
		if err := s.payments.Delete(ctx, tx, paymentID); err != nil {
			return errorbank.Internal("failed to delete payment", errorbank.WithCause(err))
		}
		return nil
	})
}

// GetPayment retrieves a payment by id.
func (s *Service) GetPayment(ctx context.Context, id int64) (*entity.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, paymentrepo.ErrNotFound) {
			return nil, errorbank.NotFound("payment not found", errorbank.WithDetail("id", id))
		}
		return nil, errorbank.Internal("failed to load payment", errorbank.WithCause(err))
	}
	return payment, nil
}

// GetPaymentByCode retrieves a payment by transaction code.
func (s *Service) GetPaymentByCode(ctx context.Context, code string) (*entity.Payment, error) {
	payment, err := s.payments.GetByTransactionCode(ctx, code)
	if err != nil {
		if errors.Is(err, paymentrepo.ErrNotFound) {
			return nil, errorbank.NotFound("payment not found", errorbank.WithDetail("code", code))
		}
		return nil, errorbank.Internal("failed to load payment", errorbank.WithCause(err))
	}
	return payment, nil
}

// ListPaymentsByOrder returns the payments recorded against one order.
func (s *Service) ListPaymentsByOrder(ctx context.Context, orderID int64) ([]*entity.Payment, error) {
	payments, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to list payments", errorbank.WithCause(err))
	}
	return payments, nil
}

// ListPaymentsByStatus returns payments in one status.
func (s *Service) ListPaymentsByStatus(ctx context.Context, status entity.PaymentStatus) ([]*entity.Payment, error) {
	payments, err := s.payments.ListByStatus(ctx, status)
	if err != nil {
		return nil, errorbank.Internal("failed to list payments", errorbank.WithCause(err))
	}
	return payments, nil
}

// ListPaymentsByMethod returns payments taken with one method.
func (s *Service) ListPaymentsByMethod(ctx context.Context, method entity.PaymentMethod) ([]*entity.Payment, error) {
	if !entity.ValidPaymentMethod(method) {
		return nil, errorbank.InvalidArgument("unknown payment method",
			errorbank.WithDetail("method", string(method)))
	}
	payments, err := s.payments.ListByMethod(ctx, method)
	if err != nil {
		return nil, errorbank.Internal("failed to list payments", errorbank.WithCause(err))
	}
	return payments, nil
}

// ListPaymentsByPeriod returns payments created within [from, to).
func (s *Service) ListPaymentsByPeriod(ctx context.Context, from, to time.Time) ([]*entity.Payment, error) {
	if !to.After(from) {
		return nil, errorbank.InvalidArgument("period end must be after period start")
	}
	payments, err := s.payments.ListByPeriod(ctx, from, to)
	if err != nil {
		return nil, errorbank.Internal("failed to list payments", errorbank.WithCause(err))
	}
	return payments, nil
}

// SalesTotalForPeriod sums approved payments confirmed within [from, to).
func (s *Service) SalesTotalForPeriod(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	if !to.After(from) {
		return decimal.Zero, errorbank.InvalidArgument("period end must be after period start")
	}
	total, err := s.payments.SumApprovedByPeriod(ctx, from, to)
	if err != nil {
		return decimal.Zero, errorbank.Internal("failed to sum payments", errorbank.WithCause(err))
	}
	return total, nil
}

// transitionPayment moves a payment between statuses inside a transaction,
// stamping ConfirmedAt on approval.
func (s *Service) transitionPayment(ctx context.Context, actorID, paymentID int64, from, to entity.PaymentStatus) (*entity.Payment, error) {
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		payment, err = s.getPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != from {
			return errorbank.InvalidState("payment is not in the expected status",
				errorbank.WithDetail("current", string(payment.Status)),
				errorbank.WithDetail("expected", string(from)))
		}
		payment.Status = to
		if to == entity.PaymentApproved {
			now := time.Now().UTC()
			payment.ConfirmedAt = &now
		}
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return errorbank.Internal("failed to update payment", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) getOrder(ctx context.Context, tx bun.Tx, orderID int64) (*entity.Order, error) {
	order, err := s.orders.Get(ctx, tx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", orderID))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) getPayment(ctx context.Context, tx bun.Tx, paymentID int64) (*entity.Payment, error) {
	payment, err := s.payments.Get(ctx, tx, paymentID)
	if errors.Is(err, paymentrepo.ErrNotFound) {
		return nil, errorbank.NotFound("payment not found", errorbank.WithDetail("id", paymentID))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load payment", errorbank.WithCause(err))
	}
	return payment, nil
}

// releaseTableIfIdle frees the table when no non-terminal order and no open
// tab still hold it.
func (s *Service) releaseTableIfIdle(ctx context.Context, tx bun.Tx, tableID int64) error {
	active, err := s.orders.ActiveExistsForTable(ctx, tx, tableID)
	if err != nil {
		return errorbank.Internal("failed to check table orders", errorbank.WithCause(err))
	}
	if active {
		return nil
	}
	open, err := s.tabs.OpenExistsForTable(ctx, tx, tableID, 0)
	if err != nil {
		return errorbank.Internal("failed to check table tabs", errorbank.WithCause(err))
	}
	if open {
		return nil
	}
	if err := s.tables.SetStatus(ctx, tx, tableID, entity.TableFree); err != nil {
		return errorbank.Internal("failed to free table", errorbank.WithCause(err))
	}
	return nil
}

func (s *Service) requireActor(ctx context.Context, actorID int64) error {
	if actorID <= 0 {
		return errorbank.InvalidArgument("acting user is required")
	}
	exists, err := s.users.Exists(ctx, actorID)
	if err != nil {
		return errorbank.Internal("failed to verify acting user", errorbank.WithCause(err))
	}
	if !exists {
		return errorbank.NotFound("user not found", errorbank.WithDetail("id", actorID))
	}
	return nil
}

func validatePaymentInput(in PaymentInput) error {
	if !entity.ValidPaymentMethod(in.Method) {
		return errorbank.InvalidArgument("unknown payment method",
			errorbank.WithDetail("method", string(in.Method)))
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return errorbank.InvalidArgument("payment amount must be greater than zero",
			errorbank.WithDetail("amount", in.Amount.String()))
	}
	return nil
}

// newTransactionCode mints a payment code: "TXN" plus twelve uppercase hex
// characters.
func newTransactionCode() string {
	id := uuid.New()
	return "TXN" + strings.ToUpper(hex.EncodeToString(id[:])[:12])
}
