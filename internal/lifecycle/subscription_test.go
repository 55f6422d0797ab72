package lifecycle

import (
	"context"
	"testing"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	acquired bool
	err      error
	released []string
}

func (l *fakeLocker) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return l.acquired, l.err
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	l.released = append(l.released, key)
	return nil
}

// conflictingOrders makes every Update lose to a phantom concurrent writer.
type conflictingOrders struct {
	*store.Memory
}

func (c conflictingOrders) Update(ctx context.Context, id string, upd models.OrderUpdate, expectedVersion int64) (*models.Order, error) {
	cur, err := c.Memory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := c.Memory.Update(ctx, id, models.OrderUpdate{UpdatedAt: time.Now()}, cur.Version); err != nil {
		return nil, err
	}
	return c.Memory.Update(ctx, id, upd, expectedVersion)
}

func TestMaterializeSubscription(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	completedPaidOrder(t, m, "o-1")

	subID, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)
	require.NotEmpty(t, subID)

	sub, err := m.Subscriptions().Get(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, "o-1", sub.OrderID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	got, err := m.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, subID, got.SubscriptionID)
}

func TestMaterializeSubscriptionIsIdempotent(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	completedPaidOrder(t, m, "o-1")

	first, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)

	second, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.SubscriptionCount())
}

func TestMaterializeSubscriptionPreconditions(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)

	// completed but unpaid
	seedOrder(t, m, "o-1", withStatus(models.OrderStatusCompleted))
	// paid but not completed
	seedOrder(t, m, "o-2", withStatus(models.OrderStatusConfirmed), withPayment(models.PaymentStatusPaid))

	for _, id := range []string{"o-1", "o-2"} {
		_, err := e.MaterializeSubscription(context.Background(), id)
		assert.ErrorIs(t, err, ErrPrecondition, "order %s", id)
	}
	assert.Zero(t, m.SubscriptionCount())
}

func TestMaterializeSubscriptionDerivesPlanFromSnapshot(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	seedOrder(t, m, "o-1",
		withStatus(models.OrderStatusCompleted),
		withPayment(models.PaymentStatusPaid),
		withOption("Annual", 12))

	subID, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)

	sub, err := m.Subscriptions().Get(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, "Annual", sub.PlanName)
	assert.Equal(t, 12, sub.DurationMonth)
	// price is the charged amount, never a catalog lookup
	assert.Equal(t, int64(10000), sub.Price)
	assert.Equal(t, sub.StartsAt.AddDate(0, 12, 0), sub.EndsAt)
}

func TestMaterializeSubscriptionDefaultsToOneMonth(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	completedPaidOrder(t, m, "o-1")

	subID, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)

	sub, err := m.Subscriptions().Get(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, "Streaming Plus", sub.PlanName)
	assert.Equal(t, 1, sub.DurationMonth)
}

func TestMaterializeSubscriptionCompensatesOnConflict(t *testing.T) {
	m := store.NewMemory()
	e := NewEngine(conflictingOrders{m}, m.Subscriptions(), Options{})
	completedPaidOrder(t, m, "o-1")

	_, err := e.MaterializeSubscription(context.Background(), "o-1")
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	// the half-made subscription was rolled back
	assert.Zero(t, m.SubscriptionCount())

	got, gerr := m.Get(context.Background(), "o-1")
	require.NoError(t, gerr)
	assert.Empty(t, got.SubscriptionID)
}

func TestMaterializeSubscriptionLockHeldElsewhere(t *testing.T) {
	m := store.NewMemory()
	e := NewEngine(m, m.Subscriptions(), Options{Locker: &fakeLocker{acquired: false}})
	completedPaidOrder(t, m, "o-1")

	_, err := e.MaterializeSubscription(context.Background(), "o-1")
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Zero(t, m.SubscriptionCount())
}

func TestMaterializeSubscriptionLockFailureFallsBack(t *testing.T) {
	// Lock service being down degrades to the version check alone.
	m := store.NewMemory()
	e := NewEngine(m, m.Subscriptions(), Options{Locker: &fakeLocker{err: assert.AnError}})
	completedPaidOrder(t, m, "o-1")

	subID, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)
	require.NotEmpty(t, subID)
}

func TestMaterializeSubscriptionReleasesLock(t *testing.T) {
	m := store.NewMemory()
	locker := &fakeLocker{acquired: true}
	e := NewEngine(m, m.Subscriptions(), Options{Locker: locker})
	completedPaidOrder(t, m, "o-1")

	_, err := e.MaterializeSubscription(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"materialize:o-1"}, locker.released)
}

func TestMaterializeSubscriptionUnknownOrder(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)

	_, err := e.MaterializeSubscription(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
