package notification

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/dto"
	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
	"github.com/Additional-Code/comanda/internal/worker"
)

// paymentEvent is the portion of the event envelope the payment audit log
// cares about.
type paymentEvent struct {
	Kind    notifier.Kind       `json:"kind"`
	Payload dto.PaymentResponse `json:"payload"`
}

// NewPaymentAuditHandler writes settlement outcomes to the audit log.
func NewPaymentAuditHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		var event paymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode payment event", zap.Error(err))

			return err
		}
		logger.Info("payment event recorded",
			zap.String("kind", string(event.Kind)),
			zap.Int64("payment_id", event.Payload.ID),
			zap.Int64("order_id", event.Payload.OrderID),
			zap.String("transaction_code", event.Payload.TransactionCode),
			zap.String("status", event.Payload.Status),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Kinds: []notifier.Kind{
			notifier.PaymentProcessed,
			notifier.PaymentRefunded,
			notifier.PaymentDeclined,
		},
		Handler: handler,
	}
}
