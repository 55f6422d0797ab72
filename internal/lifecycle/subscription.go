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

// MaterializeSubscription converts a completed, paid order into a
// subscription exactly once. Repeated calls return the existing id without
// creating a second record; an operator double-click must never yield two
// subscriptions for one order.
func (e *Engine) MaterializeSubscription(ctx context.Context, orderID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "Engine.MaterializeSubscription")
	defer span.End()

	if e.locker != nil {
		key := "materialize:" + orderID
		acquired, err := e.locker.AcquireLock(ctx, key, e.lockTTL)
		if err != nil {
			e.logger.Warn("Materialize lock unavailable, relying on version check",
				zap.String("order_id", orderID), zap.Error(err))
		} else if !acquired {
			// Another replica is materializing this order right now. The
			// caller re-fetches and retries exactly as for a lost write.
			return "", fmt.Errorf("order %s is being materialized: %w",
				orderID, store.ErrVersionConflict)
		} else {
			defer func() {
				if err := e.locker.ReleaseLock(context.Background(), key); err != nil {
					e.logger.Warn("Failed to release materialize lock",
						zap.String("order_id", orderID), zap.Error(err))
				}
			}()
		}
	}

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}

	if order.SubscriptionID != "" {
		util.MaterializeDuplicatesTotal.Inc()
		e.logger.Info("Order already materialized",
			zap.String("order_id", orderID),
			zap.String("subscription_id", order.SubscriptionID))
		return order.SubscriptionID, nil
	}

	if order.Status != models.OrderStatusCompleted || order.PaymentStatus != models.PaymentStatusPaid {
		return "", fmt.Errorf("order %s is %s/%s, needs completed/paid: %w",
			orderID, order.Status, order.PaymentStatus, ErrPrecondition)
	}

	sub := subscriptionFromOrder(order)
	if err := e.subs.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("failed to create subscription: %w", err)
	}

	now := time.Now()
	upd := models.OrderUpdate{
		SubscriptionID: &sub.ID,
		UpdatedAt:      now,
	}

	updated, err := e.orders.Update(ctx, orderID, upd, order.Version)
	if err != nil {
		// A concurrent writer got in between; compensate so the half-made
		// subscription does not leak, then surface the conflict.
		if delErr := e.subs.Delete(ctx, sub.ID); delErr != nil {
			e.logger.Error("Failed to compensate subscription after conflict",
				zap.String("subscription_id", sub.ID), zap.Error(delErr))
		}
		if errors.Is(err, store.ErrVersionConflict) {
			util.VersionConflictsTotal.Inc()
		}
		return "", err
	}

	util.SubscriptionsMaterializedTotal.Inc()
	e.publishSubscriptionCreated(ctx, updated, sub)
	e.logger.Info("Subscription materialized",
		zap.String("order_id", orderID),
		zap.String("subscription_id", sub.ID),
		zap.String("plan", sub.PlanName),
		zap.Int64("price", sub.Price))
	return sub.ID, nil
}

// subscriptionFromOrder derives the subscription from the order's immutable
// product snapshot. The price is what the customer was charged; the catalog
// is never consulted, since its prices may have changed since checkout.
func subscriptionFromOrder(order *models.Order) *models.Subscription {
	plan := order.ProductName
	months := 1
	if order.OptionName != "" {
		plan = order.OptionName
	}
	if order.OptionDuration > 0 {
		months = order.OptionDuration
	}

	now := time.Now()
	return &models.Subscription{
		ID:            uuid.New().String(),
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		PlanName:      plan,
		Price:         order.TotalPrice,
		DurationMonth: months,
		StartsAt:      now,
		EndsAt:        now.AddDate(0, months, 0),
		Status:        models.SubscriptionStatusActive,
		CreatedAt:     now,
	}
}

func (e *Engine) publishSubscriptionCreated(ctx context.Context, order *models.Order, sub *models.Subscription) {
	if e.events == nil {
		return
	}

	event := &models.SubscriptionCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSubscriptionCreated,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		SubscriptionID: sub.ID,
		PlanName:       sub.PlanName,
		Price:          sub.Price,
		DurationMonth:  sub.DurationMonth,
	}

	if err := e.events.PublishSubscriptionCreated(ctx, event); err != nil {
		e.logger.Error("Failed to publish SubscriptionCreated event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}
