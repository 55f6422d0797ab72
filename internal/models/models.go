package models

import "time"

// OrderStatus is the primary lifecycle axis of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks payment independently of the order axis.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ShippingStatus is only present on orders whose product snapshot requires
// physical shipping. The zero value means the axis is absent.
type ShippingStatus string

const (
	ShippingStatusNone           ShippingStatus = ""
	ShippingStatusPending        ShippingStatus = "pending"
	ShippingStatusPreparing      ShippingStatus = "preparing"
	ShippingStatusShipped        ShippingStatus = "shipped"
	ShippingStatusOutForDelivery ShippingStatus = "out_for_delivery"
	ShippingStatusDelivered      ShippingStatus = "delivered"
)

// ReturnStatus tracks the return sub-workflow; forward-only.
type ReturnStatus string

const (
	ReturnStatusNone      ReturnStatus = "none"
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusReturned  ReturnStatus = "returned"
	ReturnStatusExchanged ReturnStatus = "exchanged"
)

// ValidOrderStatus reports whether s is a member of the order status enum.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusConfirmed,
		OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a member of the payment status enum.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// ValidShippingStatus reports whether s is a settable member of the shipping
// status enum. The absent value is not settable.
func ValidShippingStatus(s ShippingStatus) bool {
	switch s {
	case ShippingStatusPending, ShippingStatusPreparing, ShippingStatusShipped,
		ShippingStatusOutForDelivery, ShippingStatusDelivered:
		return true
	}
	return false
}

// ValidReturnStatus reports whether s is a member of the return status enum.
func ValidReturnStatus(s ReturnStatus) bool {
	switch s {
	case ReturnStatusNone, ReturnStatusRequested, ReturnStatusApproved,
		ReturnStatusRejected, ReturnStatusReturned, ReturnStatusExchanged:
		return true
	}
	return false
}

// Order is the central entity. The customer and product fields are a snapshot
// captured at order time; later catalog changes never alter an existing order.
// Prices are in minor currency units.
type Order struct {
	ID string `db:"id" json:"id"`

	CustomerName  string `db:"customer_name" json:"customer_name"`
	CustomerEmail string `db:"customer_email" json:"customer_email"`
	CustomerPhone string `db:"customer_phone" json:"customer_phone"`

	ProductID        string `db:"product_id" json:"product_id"`
	ProductName      string `db:"product_name" json:"product_name"`
	UnitPrice        int64  `db:"unit_price" json:"unit_price"`
	Quantity         int    `db:"quantity" json:"quantity"`
	OptionName       string `db:"option_name" json:"option_name,omitempty"`
	OptionDuration   int    `db:"option_duration" json:"option_duration,omitempty"`
	RequiresShipping bool   `db:"requires_shipping" json:"requires_shipping"`

	TotalPrice int64 `db:"total_price" json:"total_price"`

	Status         OrderStatus    `db:"status" json:"status"`
	PaymentStatus  PaymentStatus  `db:"payment_status" json:"payment_status"`
	ShippingStatus ShippingStatus `db:"shipping_status" json:"shipping_status,omitempty"`
	ReturnStatus   ReturnStatus   `db:"return_status" json:"return_status"`

	ReturnReason string `db:"return_reason" json:"return_reason,omitempty"`
	RefundAmount int64  `db:"refund_amount" json:"refund_amount,omitempty"`
	RefundMethod string `db:"refund_method" json:"refund_method,omitempty"`

	SubscriptionID string `db:"subscription_id" json:"subscription_id,omitempty"`

	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	ConfirmedAt       *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ShippedAt         *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ReturnRequestedAt *time.Time `db:"return_requested_at" json:"return_requested_at,omitempty"`
	ReturnApprovedAt  *time.Time `db:"return_approved_at" json:"return_approved_at,omitempty"`
	ReturnCompletedAt *time.Time `db:"return_completed_at" json:"return_completed_at,omitempty"`
	RefundCompletedAt *time.Time `db:"refund_completed_at" json:"refund_completed_at,omitempty"`
}

// HasShipping reports whether the shipping axis exists for this order.
func (o *Order) HasShipping() bool {
	return o.RequiresShipping
}

// OrderUpdate is a partial update applied to an order under an optimistic
// version check. Nil fields are left untouched. UpdatedAt is always written.
type OrderUpdate struct {
	Status         *OrderStatus
	PaymentStatus  *PaymentStatus
	ShippingStatus *ShippingStatus
	ReturnStatus   *ReturnStatus

	ReturnReason *string
	RefundAmount *int64
	RefundMethod *string

	SubscriptionID *string

	UpdatedAt time.Time

	ConfirmedAt       *time.Time
	PaidAt            *time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
	ReturnRequestedAt *time.Time
	ReturnApprovedAt  *time.Time
	ReturnCompletedAt *time.Time
	RefundCompletedAt *time.Time
}

// Subscription statuses
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription is materialized from a completed, paid order. OrderID and the
// order's SubscriptionID form a 1:1 write-once pair.
type Subscription struct {
	ID            string    `db:"id" json:"id"`
	OrderID       string    `db:"order_id" json:"order_id"`
	CustomerName  string    `db:"customer_name" json:"customer_name"`
	CustomerEmail string    `db:"customer_email" json:"customer_email"`
	PlanName      string    `db:"plan_name" json:"plan_name"`
	Price         int64     `db:"price" json:"price"`
	DurationMonth int       `db:"duration_months" json:"duration_months"`
	StartsAt      time.Time `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time `db:"ends_at" json:"ends_at"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// InvoiceLine is a single billed line on an invoice.
type InvoiceLine struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

// InvoiceDocument is a rendered, point-in-time artifact attesting to a paid
// order. Rendering the same order snapshot yields the same document.
type InvoiceDocument struct {
	Number        string        `json:"number"`
	OrderID       string        `json:"order_id"`
	IssuedAt      time.Time     `json:"issued_at"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	Lines         []InvoiceLine `json:"lines"`
	Total         int64         `json:"total"`
	HTML          string        `json:"html"`
	Text          string        `json:"text"`
}
