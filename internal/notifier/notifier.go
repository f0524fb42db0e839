package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/comanda/internal/config"
	"github.com/Additional-Code/comanda/internal/messaging"
)

// Kind identifies a lifecycle event. The set is closed: NewEvent rejects
// anything not listed here instead of falling through to a default branch.
type Kind string

const (
	OrderCreated   Kind = "order-created"
	OrderUpdated   Kind = "order-updated"
	OrderClosed    Kind = "order-closed"
	OrderCancelled Kind = "order-cancelled"
	ItemAdded      Kind = "item-added"
	ItemRemoved    Kind = "item-removed"
	KitchenAlert   Kind = "kitchen-alert"
	TableUpdated   Kind = "table-updated"
	TabOpened      Kind = "tab-opened"
	TabClosed      Kind = "tab-closed"
	TabCancelled   Kind = "tab-cancelled"
	PaymentProcessed Kind = "payment-processed"
	PaymentRefunded  Kind = "payment-refunded"
	PaymentDeclined  Kind = "payment-declined"
)

var known = map[Kind]struct{}{
	OrderCreated: {}, OrderUpdated: {}, OrderClosed: {}, OrderCancelled: {},
	ItemAdded: {}, ItemRemoved: {}, KitchenAlert: {}, TableUpdated: {},
	TabOpened: {}, TabClosed: {}, TabCancelled: {},
	PaymentProcessed: {}, PaymentRefunded: {}, PaymentDeclined: {},
}

// Event is the envelope put on the bus. Payload is the domain object the
// event is about, serialized as-is.
type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// NewEvent builds an Event, rejecting unknown kinds at construction.
func NewEvent(kind Kind, payload any) (Event, error) {
	if _, ok := known[kind]; !ok {
		return Event{}, fmt.Errorf("unknown event kind: %q", kind)
	}
	return Event{Kind: kind, At: time.Now().UTC(), Payload: payload}, nil
}

// Notifier broadcasts lifecycle events. Publishing is fire-and-forget:
// failures are logged and never surfaced to the caller, so a broken bus
// cannot roll back a committed state transition.
type Notifier struct {
	client  messaging.Client
	logger  *zap.Logger
	enabled bool
}

// Module provides the Notifier to Fx.
var Module = fx.Provide(New)

// New wires a Notifier over the configured messaging client.
func New(client messaging.Client, cfg config.Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		client:  client,
		logger:  logger,
		enabled: cfg.Messaging.Enabled,
	}
}

// Publish emits an event of the given kind. Errors are swallowed after
// logging; see the type comment.
func (n *Notifier) Publish(ctx context.Context, kind Kind, payload any) {
	if n == nil || !n.enabled || n.client == nil {
		return
	}
	event, err := NewEvent(kind, payload)
	if err != nil {
		n.logger.Error("construct event", zap.Error(err))
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal event", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, []byte(kind), value); err != nil {
		n.logger.Error("publish event", zap.String("kind", string(kind)), zap.Error(err))
	}
}
