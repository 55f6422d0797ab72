package lifecycle

import "fulfillment-service/internal/models"

// Axis names one of the four status dimensions of an order.
type Axis string

const (
	AxisStatus   Axis = "status"
	AxisPayment  Axis = "paymentStatus"
	AxisShipping Axis = "shippingStatus"
	AxisReturn   Axis = "returnStatus"
)

// ValidAxis reports whether a names a known axis.
func ValidAxis(a Axis) bool {
	switch a {
	case AxisStatus, AxisPayment, AxisShipping, AxisReturn:
		return true
	}
	return false
}

// The order axis advances along this chain; forward jumps are allowed,
// backward moves are not. cancelled is reachable from any non-terminal state.
var orderStatusRank = map[models.OrderStatus]int{
	models.OrderStatusPending:    0,
	models.OrderStatusProcessing: 1,
	models.OrderStatusConfirmed:  2,
	models.OrderStatusShipped:    3,
	models.OrderStatusCompleted:  4,
}

func orderStatusTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusCompleted || s == models.OrderStatusCancelled
}

func canTransitionOrderStatus(from, to models.OrderStatus) bool {
	if orderStatusTerminal(from) {
		return false
	}
	if to == models.OrderStatusCancelled {
		return true
	}
	fromRank, ok := orderStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := orderStatusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Payment moves independently of the other axes. A failed payment may be
// retried; refunded is terminal.
var paymentStatusNext = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusPending:  {models.PaymentStatusPaid, models.PaymentStatusFailed},
	models.PaymentStatusFailed:   {models.PaymentStatusPending, models.PaymentStatusPaid},
	models.PaymentStatusPaid:     {models.PaymentStatusRefunded},
	models.PaymentStatusRefunded: {},
}

func canTransitionPaymentStatus(from, to models.PaymentStatus) bool {
	for _, next := range paymentStatusNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Shipping advances along this chain; forward jumps are allowed so an
// operator can record a delivery that skipped intermediate scans.
var shippingStatusRank = map[models.ShippingStatus]int{
	models.ShippingStatusPending:        0,
	models.ShippingStatusPreparing:      1,
	models.ShippingStatusShipped:        2,
	models.ShippingStatusOutForDelivery: 3,
	models.ShippingStatusDelivered:      4,
}

func canTransitionShippingStatus(from, to models.ShippingStatus) bool {
	if from == models.ShippingStatusNone {
		from = models.ShippingStatusPending
	}
	fromRank, ok := shippingStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := shippingStatusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Return status only moves forward:
// none -> requested -> {approved | rejected} -> {returned | exchanged}.
var returnStatusNext = map[models.ReturnStatus][]models.ReturnStatus{
	models.ReturnStatusNone:      {models.ReturnStatusRequested},
	models.ReturnStatusRequested: {models.ReturnStatusApproved, models.ReturnStatusRejected},
	models.ReturnStatusApproved:  {models.ReturnStatusReturned, models.ReturnStatusExchanged},
	models.ReturnStatusRejected:  {},
	models.ReturnStatusReturned:  {},
	models.ReturnStatusExchanged: {},
}

func canTransitionReturnStatus(from, to models.ReturnStatus) bool {
	for _, next := range returnStatusNext[from] {
		if next == to {
			return true
		}
	}
	return false
}
