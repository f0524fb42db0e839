package notifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/messaging"
)

type captureClient struct {
	keys   []string
	values [][]byte
}

func (c *captureClient) Publish(_ context.Context, key []byte, value []byte) error {
	c.keys = append(c.keys, string(key))
	c.values = append(c.values, value)
	return nil
}

func (c *captureClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *captureClient) Topic() string { return "comanda.events" }

func newTestNotifier(client messaging.Client, enabled bool) *Notifier {
	cfg := config.Config{}
	cfg.Messaging.Enabled = enabled
	return New(client, cfg, zap.NewNop())
}

func TestNewEventRejectsUnknownKind(t *testing.T) {
	_, err := NewEvent(Kind("table-exploded"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")

	event, err := NewEvent(OrderCreated, map[string]int{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, event.Kind)
	assert.False(t, event.At.IsZero())
}

func TestPublishUsesKindAsMessageKey(t *testing.T) {
	client := &captureClient{}
	n := newTestNotifier(client, true)

	n.Publish(context.Background(), KitchenAlert, map[string]any{"order_id": 7})

	require.Len(t, client.keys, 1)
	assert.Equal(t, string(KitchenAlert), client.keys[0])

	var event Event
	require.NoError(t, json.Unmarshal(client.values[0], &event))
	assert.Equal(t, KitchenAlert, event.Kind)
}

func TestPublishDropsUnknownKind(t *testing.T) {
	client := &captureClient{}
	n := newTestNotifier(client, true)

	n.Publish(context.Background(), Kind("made-up"), nil)

	assert.Empty(t, client.keys)
}

func TestPublishIsNoopWhenDisabled(t *testing.T) {
	client := &captureClient{}
	n := newTestNotifier(client, false)

	n.Publish(context.Background(), OrderClosed, nil)

	assert.Empty(t, client.keys)
}
