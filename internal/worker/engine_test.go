package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/messaging"
	"github.com/Additional-Code/comanda/internal/notifier"
)

// scriptedClient replays a fixed message batch through the consume handler
// and then ends the loop with a cancellation.
type scriptedClient struct {
	msgs []messaging.Message
}

func (c *scriptedClient) Publish(context.Context, []byte, []byte) error { return nil }

func (c *scriptedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for _, msg := range c.msgs {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return context.Canceled
}

func (c *scriptedClient) Topic() string { return "test.events" }

func newEngine(client messaging.Client, regs ...HandlerRegistration) *Engine {
	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 1

	return NewEngine(Params{
		Client:        client,
		Logger:        zap.NewNop(),
		Config:        cfg,
		Registrations: regs,
	})
}

func TestConsumeDispatchesByMessageKey(t *testing.T) {
	client := &scriptedClient{msgs: []messaging.Message{
		{Key: []byte(notifier.KitchenAlert), Value: []byte(`{}`)},
		{Key: []byte(notifier.PaymentProcessed), Value: []byte(`{}`)},
		{Key: []byte(notifier.KitchenAlert), Value: []byte(`{}`)},
		{Key: []byte("unregistered-kind"), Value: []byte(`{}`)},
	}}

	var kitchen, payments int
	engine := newEngine(client,
		HandlerRegistration{
			Kinds: []notifier.Kind{notifier.KitchenAlert},
			Handler: func(context.Context, messaging.Message) error {
				kitchen++
				return nil
			},
		},
		HandlerRegistration{
			Kinds: []notifier.Kind{notifier.PaymentProcessed, notifier.PaymentRefunded},
			Handler: func(context.Context, messaging.Message) error {
				payments++
				return nil
			},
		},
	)

	engine.consumeLoop(context.Background(), 0)

	assert.Equal(t, 2, kitchen)
	assert.Equal(t, 1, payments)
}

func TestConsumeFansOutToMultipleHandlers(t *testing.T) {
	client := &scriptedClient{msgs: []messaging.Message{
		{Key: []byte(notifier.OrderCancelled), Value: []byte(`{}`)},
	}}

	var first, second int
	engine := newEngine(client,
		HandlerRegistration{
			Kinds: []notifier.Kind{notifier.OrderCancelled},
			Handler: func(context.Context, messaging.Message) error {
				first++
				return nil
			},
		},
		HandlerRegistration{
			Kinds: []notifier.Kind{notifier.OrderCancelled},
			Handler: func(context.Context, messaging.Message) error {
				second++
				return nil
			},
		},
	)

	engine.consumeLoop(context.Background(), 0)

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestNilHandlersAreSkipped(t *testing.T) {
	engine := newEngine(&scriptedClient{},
		HandlerRegistration{Kinds: []notifier.Kind{notifier.KitchenAlert}},
	)
	assert.Empty(t, engine.registrations)
}

func TestStartIsNoopWhenDisabled(t *testing.T) {
	cfg := config.Config{}
	engine := NewEngine(Params{
		Client: &scriptedClient{},
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []HandlerRegistration{{
			Kinds:   []notifier.Kind{notifier.KitchenAlert},
			Handler: func(context.Context, messaging.Message) error { return nil },
		}},
	})

	require.NoError(t, engine.start(context.Background()))
	require.NoError(t, engine.stop(context.Background()))
}

func TestConsumeLoopStopsOnCancelledContext(t *testing.T) {
	var calls int
	engine := newEngine(&scriptedClient{msgs: []messaging.Message{
		{Key: []byte(notifier.KitchenAlert), Value: []byte(`{}`)},
	}}, HandlerRegistration{
		Kinds: []notifier.Kind{notifier.KitchenAlert},
		Handler: func(context.Context, messaging.Message) error {
			calls++
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.consumeLoop(ctx, 0)

	assert.Zero(t, calls)
}
