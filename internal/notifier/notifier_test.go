package notifier

import (
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCommitReachesObserversAndTaps(t *testing.T) {
	h := NewHub()

	var observed, tapped []string
	h.Subscribe("o-1", func(o models.Order) { observed = append(observed, o.ID) })
	h.SubscribeAll(func(o models.Order) { tapped = append(tapped, o.ID) })

	h.Commit(models.Order{ID: "o-1"})
	h.Commit(models.Order{ID: "o-2"})

	assert.Equal(t, []string{"o-1"}, observed)
	assert.Equal(t, []string{"o-1", "o-2"}, tapped)
}

func TestBroadcastSkipsTaps(t *testing.T) {
	// A bridge feeding remote commits back in must not re-trigger the tap
	// that publishes local commits, or two instances would ping-pong forever.
	h := NewHub()

	var observed, tapped int
	h.Subscribe("o-1", func(models.Order) { observed++ })
	h.SubscribeAll(func(models.Order) { tapped++ })

	h.Broadcast(models.Order{ID: "o-1"})

	assert.Equal(t, 1, observed)
	assert.Zero(t, tapped)
}

func TestCancelStopsDelivery(t *testing.T) {
	h := NewHub()

	var n int
	cancel := h.Subscribe("o-1", func(models.Order) { n++ })

	h.Commit(models.Order{ID: "o-1"})
	cancel()
	cancel() // cancelling twice is a no-op
	h.Commit(models.Order{ID: "o-1"})

	assert.Equal(t, 1, n)
	assert.Zero(t, h.Observers("o-1"))
}

func TestObserversAreIndependent(t *testing.T) {
	h := NewHub()

	var a, b int
	cancelA := h.Subscribe("o-1", func(models.Order) { a++ })
	h.Subscribe("o-1", func(models.Order) { b++ })

	h.Commit(models.Order{ID: "o-1"})
	cancelA()
	h.Commit(models.Order{ID: "o-1"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, h.Observers("o-1"))
}
