package notification

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/dto"
	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
	"github.com/Additional-Code/comanda/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/comanda/worker/notification")

// Module registers notification worker handlers.
var Module = fx.Module("worker_notification",
	fx.Provide(
		fx.Annotate(
			NewKitchenAlertHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewPaymentAuditHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// kitchenEvent is the portion of the event envelope the kitchen display
// cares about.
type kitchenEvent struct {
	Kind    notifier.Kind     `json:"kind"`
	Payload dto.OrderResponse `json:"payload"`
}

// NewKitchenAlertHandler forwards preparation-relevant order events to the
// kitchen display log.
func NewKitchenAlertHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.kitchen.process", trace.WithAttributes(
			attribute.String("event.kind", string(msg.Key)),
		))
		defer span.End()

		var event kitchenEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode kitchen event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("kitchen notified",
			zap.String("kind", string(event.Kind)),
			zap.Int64("order_id", event.Payload.ID),
			zap.Int64("table_id", event.Payload.TableID),
			zap.Int("items", len(event.Payload.Items)),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Kinds: []notifier.Kind{
			notifier.KitchenAlert,
			notifier.OrderCancelled,
		},
		Handler: handler,
	}
}
