package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/comanda/internal/entity"
	"github.com/Additional-Code/comanda/internal/service/settlement"
)

// PaymentResponse represents a payment as exposed via transport layers.
type PaymentResponse struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	Method          string          `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	TransactionCode string          `json:"transaction_code"`
	Note            string          `json:"note,omitempty"`
	Installments    int             `json:"installments,omitempty"`
	CardBrand       string          `json:"card_brand,omitempty"`
	CardLastDigits  string          `json:"card_last_digits,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
}

// NewPaymentResponse maps a payment entity onto its transport shape.
func NewPaymentResponse(payment *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              payment.ID,
		OrderID:         payment.OrderID,
		Method:          string(payment.Method),
		Amount:          payment.Amount,
		Status:          string(payment.Status),
		TransactionCode: payment.TransactionCode,
		Note:            payment.Note,
		Installments:    payment.Installments,
		CardBrand:       payment.CardBrand,
		CardLastDigits:  payment.CardLastDigits,
		CreatedAt:       payment.CreatedAt,
		ConfirmedAt:     payment.ConfirmedAt,
	}
}

// NewPaymentResponses maps a slice of payments.
func NewPaymentResponses(payments []*entity.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, NewPaymentResponse(payment))
	}
	return out
}

// ReceiptResponse is the settlement summary returned by the finalize path.
type ReceiptResponse struct {
	OrderID          int64               `json:"order_id"`
	TableID          int64               `json:"table_id"`
	TableNumber      int                 `json:"table_number"`
	TransactionCode  string              `json:"transaction_code"`
	CustomerName     string              `json:"customer_name,omitempty"`
	CustomerDocument string              `json:"customer_document,omitempty"`
	Items            []OrderItemResponse `json:"items"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Surcharge        decimal.Decimal     `json:"surcharge"`
	Discount         decimal.Decimal     `json:"discount"`
	Total            decimal.Decimal     `json:"total"`
	Method           string              `json:"method"`
	Tendered         decimal.Decimal     `json:"tendered"`
	Change           decimal.Decimal     `json:"change"`
	IssuedAt         time.Time           `json:"issued_at"`
}

// NewReceiptResponse maps a settlement receipt onto its transport shape.
func NewReceiptResponse(receipt *settlement.Receipt) ReceiptResponse {
	items := make([]OrderItemResponse, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		items = append(items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
			Note:        item.Note,
		})
	}
	return ReceiptResponse{
		OrderID:          receipt.OrderID,
		TableID:          receipt.TableID,
		TableNumber:      receipt.TableNumber,
		TransactionCode:  receipt.TransactionCode,
		CustomerName:     receipt.CustomerName,
		CustomerDocument: receipt.CustomerDocument,
		Items:            items,
		Subtotal:         receipt.Subtotal,
		Surcharge:        receipt.Surcharge,
		Discount:         receipt.Discount,
		Total:            receipt.Total,
		Method:           string(receipt.Method),
		Tendered:         receipt.Tendered,
		Change:           receipt.Change,
		IssuedAt:         receipt.IssuedAt,
	}
}
