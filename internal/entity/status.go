package entity

import (
	"github.com/Additional-Code/comanda/pkg/errorbank"
)

// TableStatus is the occupancy state of a table.
type TableStatus string

const (
	TableFree     TableStatus = "FREE"
	TableOccupied TableStatus = "OCCUPIED"
	TableReserved TableStatus = "RESERVED"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen          OrderStatus = "OPEN"
	OrderInPreparation OrderStatus = "IN_PREPARATION"
	OrderReady         OrderStatus = "READY"
	OrderDelivered     OrderStatus = "DELIVERED"
	OrderClosed        OrderStatus = "CLOSED"
	OrderCancelled     OrderStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further lifecycle changes
// (other than the explicit reopen path for CLOSED orders).
func (s OrderStatus) Terminal() bool {
	return s == OrderClosed || s == OrderCancelled
}

// ValidateTransition enforces the order state machine:
// CLOSED and CANCELLED admit no transition, DELIVERED may only move to
// CLOSED, and any non-terminal state may be cancelled. Reopening a CLOSED
// order is a separate operation and is deliberately not expressible here.
func ValidateTransition(from, to OrderStatus) error {
	switch from {
	case OrderCancelled, OrderClosed:
		return errorbank.InvalidState("order status is final",
			errorbank.WithDetail("current", string(from)),
			errorbank.WithDetail("attempted", string(to)),
		)
	case OrderDelivered:
		if to != OrderClosed {
			return errorbank.InvalidState("delivered order can only be closed",
				errorbank.WithDetail("current", string(from)),
				errorbank.WithDetail("attempted", string(to)),
			)
		}
	}
	return nil
}

// TabStatus is the lifecycle state of a tab.
type TabStatus string

const (
	TabOpen      TabStatus = "OPEN"
	TabClosed    TabStatus = "CLOSED"
	TabCancelled TabStatus = "CANCELLED"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentDeclined PaymentStatus = "DECLINED"
)

// PaymentMethod enumerates the accepted payment instruments.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodDebit  PaymentMethod = "DEBIT"
	MethodCredit PaymentMethod = "CREDIT"
	MethodPix    PaymentMethod = "PIX"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodDebit, MethodCredit, MethodPix:
		return true
	}
	return false
}
