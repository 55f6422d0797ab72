package store

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notifier"
)

var (
	// ErrNotFound is returned for reads and writes against an unknown id.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when an update's expected version no
	// longer matches the stored order. Callers re-fetch and retry; the store
	// never retries on their behalf.
	ErrVersionConflict = errors.New("concurrent modification")

	// ErrWrite wraps persistence failures. Surfaced verbatim, never
	// converted into a different committed state.
	ErrWrite = errors.New("store write failed")
)

// ListFilter narrows a cross-order scan. Nil fields match everything.
// Listing is eventually consistent with in-flight single-order writes.
type ListFilter struct {
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
	From          *time.Time
	To            *time.Time
}

// OrderStore is the durable keyed storage collaborator for orders. Updates to
// a single order are linearized via optimistic versioning; committed
// mutations are pushed to subscribers.
type OrderStore interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error

	// Update applies the partial update iff the stored version equals
	// expectedVersion, bumps the version by one, and returns the committed
	// order. Returns ErrVersionConflict on a stale expectation.
	Update(ctx context.Context, id string, upd models.OrderUpdate, expectedVersion int64) (*models.Order, error)

	// Delete removes an order unconditionally. This bypasses the state
	// machine and exists only for data correction.
	Delete(ctx context.Context, id string) error

	// Subscribe registers fn for committed changes to id and returns a
	// cancel function.
	Subscribe(id string, fn notifier.ChangeFunc) func()
}

// SubscriptionStore is the storage collaborator for materialized
// subscriptions. Delete exists for the materializer's compensation path.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Get(ctx context.Context, id string) (*models.Subscription, error)
	Delete(ctx context.Context, id string) error
}

// applyUpdate copies the non-nil fields of upd onto o. Shared by the memory
// adapter and by tests that need the same merge semantics as the stores.
func applyUpdate(o *models.Order, upd models.OrderUpdate) {
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.ShippingStatus != nil {
		o.ShippingStatus = *upd.ShippingStatus
	}
	if upd.ReturnStatus != nil {
		o.ReturnStatus = *upd.ReturnStatus
	}
	if upd.ReturnReason != nil {
		o.ReturnReason = *upd.ReturnReason
	}
	if upd.RefundAmount != nil {
		o.RefundAmount = *upd.RefundAmount
	}
	if upd.RefundMethod != nil {
		o.RefundMethod = *upd.RefundMethod
	}
	if upd.SubscriptionID != nil {
		o.SubscriptionID = *upd.SubscriptionID
	}
	if upd.ConfirmedAt != nil {
		o.ConfirmedAt = upd.ConfirmedAt
	}
	if upd.PaidAt != nil {
		o.PaidAt = upd.PaidAt
	}
	if upd.ShippedAt != nil {
		o.ShippedAt = upd.ShippedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	if upd.CompletedAt != nil {
		o.CompletedAt = upd.CompletedAt
	}
	if upd.CancelledAt != nil {
		o.CancelledAt = upd.CancelledAt
	}
	if upd.ReturnRequestedAt != nil {
		o.ReturnRequestedAt = upd.ReturnRequestedAt
	}
	if upd.ReturnApprovedAt != nil {
		o.ReturnApprovedAt = upd.ReturnApprovedAt
	}
	if upd.ReturnCompletedAt != nil {
		o.ReturnCompletedAt = upd.ReturnCompletedAt
	}
	if upd.RefundCompletedAt != nil {
		o.RefundCompletedAt = upd.RefundCompletedAt
	}
	o.UpdatedAt = upd.UpdatedAt
}

// matches reports whether o passes the filter.
func matches(o *models.Order, f ListFilter) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
