package lifecycle

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoice(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	seedOrder(t, m, "3f2c9a10-0000-4000-8000-000000000000",
		withStatus(models.OrderStatusCompleted),
		withPayment(models.PaymentStatusPaid),
		withOption("Annual", 12))

	doc, err := e.GenerateInvoice(context.Background(), "3f2c9a10-0000-4000-8000-000000000000")
	require.NoError(t, err)

	assert.Equal(t, "INV-3F2C9A100000", doc.Number)
	assert.Equal(t, "Lee", doc.CustomerName)
	assert.Equal(t, "lee@example.com", doc.CustomerEmail)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "Streaming Plus (Annual)", doc.Lines[0].Description)
	assert.Equal(t, int64(10000), doc.Total)
	assert.Contains(t, doc.Text, "Total: 100.00")
	assert.Contains(t, doc.HTML, "INV-3F2C9A100000")
}

func TestGenerateInvoiceIsDeterministic(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	completedPaidOrder(t, m, "o-1")

	first, err := e.GenerateInvoice(context.Background(), "o-1")
	require.NoError(t, err)
	second, err := e.GenerateInvoice(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Equal(t, first.Number, second.Number)
	assert.Equal(t, first.IssuedAt, second.IssuedAt)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.HTML, second.HTML)
}

func TestGenerateInvoiceRequiresPayment(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	seedOrder(t, m, "o-1", withStatus(models.OrderStatusCompleted))

	_, err := e.GenerateInvoice(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestGenerateInvoiceDoesNotMutateOrder(t *testing.T) {
	m := store.NewMemory()
	e := newTestEngine(m)
	order := completedPaidOrder(t, m, "o-1")

	_, err := e.GenerateInvoice(context.Background(), "o-1")
	require.NoError(t, err)

	got, gerr := m.Get(context.Background(), "o-1")
	require.NoError(t, gerr)
	assert.Equal(t, order.Version, got.Version)
	assert.Equal(t, order.UpdatedAt, got.UpdatedAt)
}

func TestEmailInvoice(t *testing.T) {
	m := store.NewMemory()
	delivery := &fakeDelivery{}
	e := NewEngine(m, m.Subscriptions(), Options{Delivery: delivery})
	completedPaidOrder(t, m, "o-1")

	require.NoError(t, e.EmailInvoice(context.Background(), "o-1"))
	assert.Equal(t, []string{"lee@example.com"}, delivery.sent)
}

func TestEmailInvoiceDeliveryFailure(t *testing.T) {
	m := store.NewMemory()
	e := NewEngine(m, m.Subscriptions(), Options{Delivery: &fakeDelivery{broken: true}})
	order := completedPaidOrder(t, m, "o-1")

	err := e.EmailInvoice(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrDelivery)

	// a failed send leaves the order as it was
	got, gerr := m.Get(context.Background(), "o-1")
	require.NoError(t, gerr)
	assert.Equal(t, order.Version, got.Version)
}

func TestEmailInvoiceUnpaidOrderNeverSends(t *testing.T) {
	m := store.NewMemory()
	delivery := &fakeDelivery{}
	e := NewEngine(m, m.Subscriptions(), Options{Delivery: delivery})
	seedOrder(t, m, "o-1", withStatus(models.OrderStatusCompleted))

	err := e.EmailInvoice(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Empty(t, delivery.sent)
}
