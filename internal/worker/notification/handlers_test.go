package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
)

func TestKitchenHandlerRegistration(t *testing.T) {
	reg := NewKitchenAlertHandler(zap.NewNop())

	assert.ElementsMatch(t, []notifier.Kind{notifier.KitchenAlert, notifier.OrderCancelled}, reg.Kinds)
	require.NotNil(t, reg.Handler)

	value, err := json.Marshal(map[string]any{
		"kind": notifier.KitchenAlert,
		"payload": map[string]any{
			"id":       int64(7),
			"table_id": int64(3),
		},
	})
	require.NoError(t, err)

	msg := messaging.Message{Key: []byte(notifier.KitchenAlert), Value: value}
	assert.NoError(t, reg.Handler(context.Background(), msg))

	bad := messaging.Message{Key: []byte(notifier.KitchenAlert), Value: []byte("not json")}
	assert.Error(t, reg.Handler(context.Background(), bad))
}

func TestPaymentAuditHandlerRegistration(t *testing.T) {
	reg := NewPaymentAuditHandler(zap.NewNop())

	assert.ElementsMatch(t, []notifier.Kind{
		notifier.PaymentProcessed, notifier.PaymentRefunded, notifier.PaymentDeclined,
	}, reg.Kinds)
	require.NotNil(t, reg.Handler)

	value, err := json.Marshal(map[string]any{
		"kind": notifier.PaymentProcessed,
		"payload": map[string]any{
			"id":               int64(1),
			"order_id":         int64(7),
			"transaction_code": "TXN0123456789AB",
			"status":           "APPROVED",
		},
	})
	require.NoError(t, err)

	msg := messaging.Message{Key: []byte(notifier.PaymentProcessed), Value: value}
	assert.NoError(t, reg.Handler(context.Background(), msg))

	bad := messaging.Message{Key: []byte(notifier.PaymentProcessed), Value: []byte("{")}
	assert.Error(t, reg.Handler(context.Background(), bad))
}
