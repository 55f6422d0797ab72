package models

import "time"

// Event types
const (
	EventTypeOrderUpdated        = "ORDER_UPDATED"
	EventTypeReturnRequested     = "RETURN_REQUESTED"
	EventTypeReturnDecided       = "RETURN_DECIDED"
	EventTypeReturnCompleted     = "RETURN_COMPLETED"
	EventTypeSubscriptionCreated = "SUBSCRIPTION_CREATED"
	EventTypeInvoiceEmailed      = "INVOICE_EMAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderUpdatedEvent published after any committed axis transition
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID       string        `json:"order_id"`
	Axis          string        `json:"axis"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Version       int64         `json:"version"`
}

// ReturnRequestedEvent published when a customer return is filed
type ReturnRequestedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// ReturnDecidedEvent published on approval or rejection of a return
type ReturnDecidedEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	Decision     string `json:"decision"`
	RefundAmount int64  `json:"refund_amount,omitempty"`
}

// ReturnCompletedEvent published when a return finishes as returned or exchanged
type ReturnCompletedEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	Outcome      string `json:"outcome"`
	RefundAmount int64  `json:"refund_amount,omitempty"`
	Refunded     bool   `json:"refunded"`
}

// SubscriptionCreatedEvent published when an order is materialized
type SubscriptionCreatedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	SubscriptionID string `json:"subscription_id"`
	PlanName       string `json:"plan_name"`
	Price          int64  `json:"price"`
	DurationMonth  int    `json:"duration_months"`
}

// InvoiceEmailedEvent published after an invoice is delivered
type InvoiceEmailedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	InvoiceNumber string `json:"invoice_number"`
	Recipient     string `json:"recipient"`
}
