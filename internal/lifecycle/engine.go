package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher publishes lifecycle events after a commit. Publish failures
// are logged and never fail the committed operation.
type EventPublisher interface {
	PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error
	PublishReturnRequested(ctx context.Context, event *models.ReturnRequestedEvent) error
	PublishReturnDecided(ctx context.Context, event *models.ReturnDecidedEvent) error
	PublishReturnCompleted(ctx context.Context, event *models.ReturnCompletedEvent) error
	PublishSubscriptionCreated(ctx context.Context, event *models.SubscriptionCreatedEvent) error
	PublishInvoiceEmailed(ctx context.Context, event *models.InvoiceEmailedEvent) error
}

// Locker is a best-effort distributed lock, used to collapse duplicate
// operator actions across replicas before the store-level version check.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// InvoiceRenderer turns a paid order snapshot into an invoice document.
// Rendering must be pure: same snapshot, same document.
type InvoiceRenderer interface {
	Render(order *models.Order, number string) (*models.InvoiceDocument, error)
}

// InvoiceDelivery hands a rendered invoice to the delivery collaborator.
type InvoiceDelivery interface {
	Send(ctx context.Context, doc *models.InvoiceDocument, recipientEmail string) error
}

// Options carries the optional collaborators and business knobs of an Engine.
type Options struct {
	Events              EventPublisher
	Locker              Locker
	Renderer            InvoiceRenderer
	Delivery            InvoiceDelivery
	DefaultRefundMethod string
	InvoicePrefix       string
	LockTTL             time.Duration
}

// Engine validates and applies order lifecycle transitions. All cross-axis
// cascade logic lives here; callers never update status fields directly.
type Engine struct {
	orders       store.OrderStore
	subs         store.SubscriptionStore
	events       EventPublisher
	locker       Locker
	renderer     InvoiceRenderer
	delivery     InvoiceDelivery
	refundMethod string
	invPrefix    string
	lockTTL      time.Duration
	logger       *zap.Logger
}

// NewEngine creates an engine over the given stores.
func NewEngine(orders store.OrderStore, subs store.SubscriptionStore, opts Options) *Engine {
	if opts.DefaultRefundMethod == "" {
		opts.DefaultRefundMethod = "original_payment"
	}
	if opts.InvoicePrefix == "" {
		opts.InvoicePrefix = "INV"
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.Renderer == nil {
		opts.Renderer = NewTemplateRenderer()
	}

	return &Engine{
		orders:       orders,
		subs:         subs,
		events:       opts.Events,
		locker:       opts.Locker,
		renderer:     opts.Renderer,
		delivery:     opts.Delivery,
		refundMethod: opts.DefaultRefundMethod,
		invPrefix:    opts.InvoicePrefix,
		lockTTL:      opts.LockTTL,
		logger:       util.NamedLogger("lifecycle"),
	}
}

// ApplyTransition validates the requested change to one status axis against
// the current order state and applies it as a single versioned write. A
// rejected transition leaves the order entirely unchanged.
func (e *Engine) ApplyTransition(ctx context.Context, orderID string, axis Axis, value string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.ApplyTransition")
	defer span.End()

	if !ValidAxis(axis) {
		util.TransitionsRejectedTotal.WithLabelValues(string(axis), "invalid_enum").Inc()
		return nil, fmt.Errorf("unknown axis %q: %w", axis, ErrInvalidEnum)
	}

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		util.TransitionsRejectedTotal.WithLabelValues(string(axis), "not_found").Inc()
		return nil, err
	}

	now := time.Now()
	upd := models.OrderUpdate{UpdatedAt: now}
	var from string

	switch axis {
	case AxisStatus:
		from = string(order.Status)
		if err := buildOrderStatusUpdate(order, models.OrderStatus(value), now, &upd); err != nil {
			return nil, e.reject(axis, err)
		}

	case AxisPayment:
		from = string(order.PaymentStatus)
		if err := buildPaymentStatusUpdate(order, models.PaymentStatus(value), now, &upd); err != nil {
			return nil, e.reject(axis, err)
		}

	case AxisShipping:
		from = string(order.ShippingStatus)
		if err := buildShippingStatusUpdate(order, models.ShippingStatus(value), now, &upd); err != nil {
			return nil, e.reject(axis, err)
		}

	case AxisReturn:
		from = string(order.ReturnStatus)
		if err := e.buildReturnStatusUpdate(order, models.ReturnStatus(value), now, &upd); err != nil {
			return nil, e.reject(axis, err)
		}
	}

	updated, err := e.commit(ctx, order, upd, axis)
	if err != nil {
		return nil, err
	}

	e.publishOrderUpdated(ctx, updated, axis, from, value)
	e.logger.Info("Transition applied",
		zap.String("order_id", orderID),
		zap.String("axis", string(axis)),
		zap.String("from", from),
		zap.String("to", value))
	return updated, nil
}

func buildOrderStatusUpdate(order *models.Order, to models.OrderStatus, now time.Time, upd *models.OrderUpdate) error {
	if !models.ValidOrderStatus(to) {
		return fmt.Errorf("status %q: %w", to, ErrInvalidEnum)
	}
	if !canTransitionOrderStatus(order.Status, to) {
		return fmt.Errorf("status %s -> %s: %w", order.Status, to, ErrIllegalTransition)
	}
	upd.Status = &to
	stampOrderStatus(upd, to, now)
	return nil
}

func buildPaymentStatusUpdate(order *models.Order, to models.PaymentStatus, now time.Time, upd *models.OrderUpdate) error {
	if !models.ValidPaymentStatus(to) {
		return fmt.Errorf("paymentStatus %q: %w", to, ErrInvalidEnum)
	}
	if !canTransitionPaymentStatus(order.PaymentStatus, to) {
		return fmt.Errorf("paymentStatus %s -> %s: %w", order.PaymentStatus, to, ErrIllegalTransition)
	}
	upd.PaymentStatus = &to
	switch to {
	case models.PaymentStatusPaid:
		upd.PaidAt = &now
	case models.PaymentStatusRefunded:
		upd.RefundCompletedAt = &now
	}
	return nil
}

func buildShippingStatusUpdate(order *models.Order, to models.ShippingStatus, now time.Time, upd *models.OrderUpdate) error {
	if !order.HasShipping() {
		return fmt.Errorf("order %s has no shipping axis: %w", order.ID, ErrNotApplicable)
	}
	if !models.ValidShippingStatus(to) {
		return fmt.Errorf("shippingStatus %q: %w", to, ErrInvalidEnum)
	}
	if order.Status == models.OrderStatusCancelled {
		return fmt.Errorf("order %s is cancelled: %w", order.ID, ErrIllegalTransition)
	}
	if !canTransitionShippingStatus(order.ShippingStatus, to) {
		return fmt.Errorf("shippingStatus %s -> %s: %w", order.ShippingStatus, to, ErrIllegalTransition)
	}
	upd.ShippingStatus = &to
	switch to {
	case models.ShippingStatusShipped:
		upd.ShippedAt = &now
	case models.ShippingStatusDelivered:
		upd.DeliveredAt = &now
		// The one mandatory cross-axis cascade: delivered forces the order
		// to completed in the same committed write.
		if order.Status != models.OrderStatusCompleted {
			completed := models.OrderStatusCompleted
			upd.Status = &completed
			upd.CompletedAt = &now
		}
	}
	return nil
}

// buildReturnStatusUpdate enforces the forward-only return chain on the raw
// axis, applying the same entry condition and refund coupling as the
// workflow operations so direct axis writes cannot bypass the cascades.
func (e *Engine) buildReturnStatusUpdate(order *models.Order, to models.ReturnStatus, now time.Time, upd *models.OrderUpdate) error {
	if !models.ValidReturnStatus(to) {
		return fmt.Errorf("returnStatus %q: %w", to, ErrInvalidEnum)
	}
	if !canTransitionReturnStatus(order.ReturnStatus, to) {
		return fmt.Errorf("returnStatus %s -> %s: %w", order.ReturnStatus, to, ErrIllegalTransition)
	}

	switch to {
	case models.ReturnStatusRequested:
		if order.Status != models.OrderStatusCompleted {
			return fmt.Errorf("return requested on %s order: %w", order.Status, ErrIllegalTransition)
		}
		upd.ReturnStatus = &to
		upd.ReturnRequestedAt = &now

	case models.ReturnStatusApproved:
		amount := order.TotalPrice
		method := e.refundMethod
		upd.ReturnStatus = &to
		upd.ReturnApprovedAt = &now
		upd.RefundAmount = &amount
		upd.RefundMethod = &method

	case models.ReturnStatusRejected:
		upd.ReturnStatus = &to

	case models.ReturnStatusReturned:
		stampReturnCompletion(order, to, now, upd)

	case models.ReturnStatusExchanged:
		stampReturnCompletion(order, to, now, upd)
	}
	return nil
}

// stampReturnCompletion finishes a return. Reaching returned with a recorded
// refund couples paymentStatus=refunded into the same write (Invariant:
// never an observable state that is returned but still paid).
func stampReturnCompletion(order *models.Order, outcome models.ReturnStatus, now time.Time, upd *models.OrderUpdate) {
	upd.ReturnStatus = &outcome
	upd.ReturnCompletedAt = &now
	if outcome == models.ReturnStatusReturned && order.RefundAmount > 0 {
		refunded := models.PaymentStatusRefunded
		upd.PaymentStatus = &refunded
		upd.RefundCompletedAt = &now
	}
}

func stampOrderStatus(upd *models.OrderUpdate, to models.OrderStatus, now time.Time) {
	switch to {
	case models.OrderStatusConfirmed:
		upd.ConfirmedAt = &now
	case models.OrderStatusShipped:
		upd.ShippedAt = &now
	case models.OrderStatusCompleted:
		upd.CompletedAt = &now
	case models.OrderStatusCancelled:
		upd.CancelledAt = &now
	}
}

// commit performs the single versioned store write for a transition.
func (e *Engine) commit(ctx context.Context, order *models.Order, upd models.OrderUpdate, axis Axis) (*models.Order, error) {
	start := time.Now()
	updated, err := e.orders.Update(ctx, order.ID, upd, order.Version)
	util.StoreUpdateLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			util.VersionConflictsTotal.Inc()
			util.TransitionsRejectedTotal.WithLabelValues(string(axis), "version_conflict").Inc()
		case errors.Is(err, store.ErrNotFound):
			util.TransitionsRejectedTotal.WithLabelValues(string(axis), "not_found").Inc()
		default:
			util.TransitionsRejectedTotal.WithLabelValues(string(axis), "store_write").Inc()
		}
		return nil, err
	}

	util.TransitionsAppliedTotal.WithLabelValues(string(axis)).Inc()
	return updated, nil
}

func (e *Engine) reject(axis Axis, err error) error {
	reason := "illegal_transition"
	switch {
	case errors.Is(err, ErrInvalidEnum):
		reason = "invalid_enum"
	case errors.Is(err, ErrNotApplicable):
		reason = "not_applicable"
	case errors.Is(err, ErrInvalidAmount):
		reason = "invalid_amount"
	}
	util.TransitionsRejectedTotal.WithLabelValues(string(axis), reason).Inc()
	return err
}

func (e *Engine) publishOrderUpdated(ctx context.Context, order *models.Order, axis Axis, from, to string) {
	if e.events == nil {
		return
	}

	event := &models.OrderUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderUpdated,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		Axis:          string(axis),
		From:          from,
		To:            to,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Version:       order.Version,
	}

	if err := e.events.PublishOrderUpdated(ctx, event); err != nil {
		e.logger.Error("Failed to publish OrderUpdated event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}
