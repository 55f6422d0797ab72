package notifier

import (
	"sync"

	"fulfillment-service/internal/models"
)

// ChangeFunc receives a copy of an order after a committed mutation.
// Callbacks must not block for long; they run on the committing goroutine.
type ChangeFunc func(models.Order)

// Hub fans committed order states out to every current observer of an order
// id. Observers converge on the committed state without polling; they never
// mutate orders through the hub.
type Hub struct {
	mu      sync.RWMutex
	nextID  int64
	byOrder map[string]map[int64]ChangeFunc
	taps    map[int64]ChangeFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		byOrder: make(map[string]map[int64]ChangeFunc),
		taps:    make(map[int64]ChangeFunc),
	}
}

// Subscribe registers fn for committed changes to orderID and returns a
// cancel function. Cancelling twice is harmless.
func (h *Hub) Subscribe(orderID string, fn ChangeFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID

	subs, ok := h.byOrder[orderID]
	if !ok {
		subs = make(map[int64]ChangeFunc)
		h.byOrder[orderID] = subs
	}
	subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.byOrder[orderID], id)
			if len(h.byOrder[orderID]) == 0 {
				delete(h.byOrder, orderID)
			}
		})
	}
}

// SubscribeAll registers a tap that sees every locally committed order,
// e.g. a bridge replicating commits to other service instances. Taps do not
// fire for orders fed in through Broadcast, which prevents bridge loops.
func (h *Hub) SubscribeAll(fn ChangeFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.taps[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.taps, id)
		})
	}
}

// Commit delivers a locally committed order to its observers and to all
// taps. Stores call this after every successful versioned write.
func (h *Hub) Commit(order models.Order) {
	h.deliver(order, true)
}

// Broadcast delivers an order committed elsewhere to its local observers
// only. Used by bridges feeding in remote commits.
func (h *Hub) Broadcast(order models.Order) {
	h.deliver(order, false)
}

func (h *Hub) deliver(order models.Order, includeTaps bool) {
	h.mu.RLock()
	fns := make([]ChangeFunc, 0, len(h.byOrder[order.ID])+len(h.taps))
	for _, fn := range h.byOrder[order.ID] {
		fns = append(fns, fn)
	}
	if includeTaps {
		for _, fn := range h.taps {
			fns = append(fns, fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(order)
	}
}

// Observers returns the number of current observers of orderID.
func (h *Hub) Observers(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byOrder[orderID])
}
