package lifecycle

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReturnDecision is the operator's verdict on a requested return.
type ReturnDecision string

const (
	DecisionApprove ReturnDecision = "approve"
	DecisionReject  ReturnDecision = "reject"
)

// RequestReturn files a return for a fulfilled order. Only legal while no
// return exists and the order is completed.
func (e *Engine) RequestReturn(ctx context.Context, orderID, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.RequestReturn")
	defer span.End()

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.ReturnStatus != models.ReturnStatusNone {
		return nil, fmt.Errorf("return already %s: %w", order.ReturnStatus, ErrIllegalTransition)
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, fmt.Errorf("cannot return a %s order: %w", order.Status, ErrIllegalTransition)
	}

	now := time.Now()
	requested := models.ReturnStatusRequested
	upd := models.OrderUpdate{
		ReturnStatus:      &requested,
		ReturnReason:      &reason,
		ReturnRequestedAt: &now,
		UpdatedAt:         now,
	}

	updated, err := e.commit(ctx, order, upd, AxisReturn)
	if err != nil {
		return nil, err
	}

	util.ReturnsRequestedTotal.Inc()
	e.publishReturnRequested(ctx, updated, reason)
	e.logger.Info("Return requested",
		zap.String("order_id", orderID), zap.String("reason", reason))
	return updated, nil
}

// DecideReturn approves or rejects a requested return. On approval the
// refund amount defaults to the order total; a partial figure must lie in
// [0, totalPrice]. Rejection touches no refund fields.
func (e *Engine) DecideReturn(ctx context.Context, orderID string, decision ReturnDecision, refundAmount *int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.DecideReturn")
	defer span.End()

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.ReturnStatus != models.ReturnStatusRequested {
		return nil, fmt.Errorf("return is %s, not requested: %w", order.ReturnStatus, ErrIllegalTransition)
	}

	now := time.Now()
	upd := models.OrderUpdate{UpdatedAt: now}

	switch decision {
	case DecisionApprove:
		amount := order.TotalPrice
		if refundAmount != nil {
			amount = *refundAmount
		}
		if amount < 0 || amount > order.TotalPrice {
			return nil, fmt.Errorf("refund %d outside [0, %d]: %w",
				amount, order.TotalPrice, ErrInvalidAmount)
		}

		approved := models.ReturnStatusApproved
		method := e.refundMethod
		upd.ReturnStatus = &approved
		upd.ReturnApprovedAt = &now
		upd.RefundAmount = &amount
		upd.RefundMethod = &method

	case DecisionReject:
		rejected := models.ReturnStatusRejected
		upd.ReturnStatus = &rejected

	default:
		return nil, fmt.Errorf("decision %q: %w", decision, ErrInvalidEnum)
	}

	updated, err := e.commit(ctx, order, upd, AxisReturn)
	if err != nil {
		return nil, err
	}

	util.ReturnsDecidedTotal.WithLabelValues(string(decision)).Inc()
	e.publishReturnDecided(ctx, updated, decision)
	e.logger.Info("Return decided",
		zap.String("order_id", orderID),
		zap.String("decision", string(decision)),
		zap.Int64("refund_amount", updated.RefundAmount))
	return updated, nil
}

// CompleteReturn finishes an approved return. When a refund was recorded the
// payment axis flips to refunded in the same committed write, so no observer
// ever sees a returned order that still shows paid.
func (e *Engine) CompleteReturn(ctx context.Context, orderID string) (*models.Order, error) {
	return e.completeReturn(ctx, orderID, models.ReturnStatusReturned)
}

// CompleteExchange finishes an approved return as an exchange. The
// replacement ships under the same order; refund fields stay untouched.
func (e *Engine) CompleteExchange(ctx context.Context, orderID string) (*models.Order, error) {
	return e.completeReturn(ctx, orderID, models.ReturnStatusExchanged)
}

func (e *Engine) completeReturn(ctx context.Context, orderID string, outcome models.ReturnStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.CompleteReturn")
	defer span.End()

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.ReturnStatus != models.ReturnStatusApproved {
		return nil, fmt.Errorf("return is %s, not approved: %w", order.ReturnStatus, ErrIllegalTransition)
	}

	now := time.Now()
	upd := models.OrderUpdate{UpdatedAt: now}
	stampReturnCompletion(order, outcome, now, &upd)

	updated, err := e.commit(ctx, order, upd, AxisReturn)
	if err != nil {
		return nil, err
	}

	util.ReturnsCompletedTotal.WithLabelValues(string(outcome)).Inc()
	if updated.PaymentStatus == models.PaymentStatusRefunded && updated.RefundAmount > 0 {
		util.RefundAmountTotal.Add(float64(updated.RefundAmount))
	}

	e.publishReturnCompleted(ctx, updated, outcome)
	e.logger.Info("Return completed",
		zap.String("order_id", orderID),
		zap.String("outcome", string(outcome)),
		zap.Int64("refund_amount", updated.RefundAmount))
	return updated, nil
}

func (e *Engine) publishReturnRequested(ctx context.Context, order *models.Order, reason string) {
	if e.events == nil {
		return
	}

	event := &models.ReturnRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReturnRequested,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		Reason:  reason,
	}

	if err := e.events.PublishReturnRequested(ctx, event); err != nil {
		e.logger.Error("Failed to publish ReturnRequested event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (e *Engine) publishReturnDecided(ctx context.Context, order *models.Order, decision ReturnDecision) {
	if e.events == nil {
		return
	}

	event := &models.ReturnDecidedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReturnDecided,
			Timestamp: time.Now(),
		},
		OrderID:      order.ID,
		Decision:     string(decision),
		RefundAmount: order.RefundAmount,
	}

	if err := e.events.PublishReturnDecided(ctx, event); err != nil {
		e.logger.Error("Failed to publish ReturnDecided event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (e *Engine) publishReturnCompleted(ctx context.Context, order *models.Order, outcome models.ReturnStatus) {
	if e.events == nil {
		return
	}

	event := &models.ReturnCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReturnCompleted,
			Timestamp: time.Now(),
		},
		OrderID:      order.ID,
		Outcome:      string(outcome),
		RefundAmount: order.RefundAmount,
		Refunded:     order.PaymentStatus == models.PaymentStatusRefunded,
	}

	if err := e.events.PublishReturnCompleted(ctx, event); err != nil {
		e.logger.Error("Failed to publish ReturnCompleted event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}
