package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notifier"
)

// Memory is an in-process OrderStore and SubscriptionStore. It is the
// reference implementation of the versioning and notification contracts and
// the store used by the package tests.
type Memory struct {
	mu     sync.Mutex
	orders map[string]models.Order
	subs   map[string]models.Subscription
	hub    *notifier.Hub
}

// NewMemory creates an empty memory store with its own notifier hub.
func NewMemory() *Memory {
	return NewMemoryWithHub(notifier.NewHub())
}

// NewMemoryWithHub creates a memory store fanning commits out through hub.
func NewMemoryWithHub(hub *notifier.Hub) *Memory {
	return &Memory{
		orders: make(map[string]models.Order),
		subs:   make(map[string]models.Subscription),
		hub:    hub,
	}
}

// Hub exposes the notifier hub, e.g. for bridging remote commits.
func (m *Memory) Hub() *notifier.Hub {
	return m.hub
}

func (m *Memory) Get(ctx context.Context, id string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (m *Memory) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if matches(&o, filter) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Create(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists: %w", order.ID, ErrWrite)
	}
	if order.Version == 0 {
		order.Version = 1
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *Memory) Update(ctx context.Context, id string, upd models.OrderUpdate, expectedVersion int64) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if o.Version != expectedVersion {
		m.mu.Unlock()
		return nil, fmt.Errorf("order %s at version %d, expected %d: %w",
			id, o.Version, expectedVersion, ErrVersionConflict)
	}

	applyUpdate(&o, upd)
	o.Version++
	m.orders[id] = o
	m.mu.Unlock()

	// Fan-out happens outside the lock so observers can read back.
	m.hub.Commit(o)
	return &o, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	delete(m.orders, id)
	return nil
}

func (m *Memory) Subscribe(id string, fn notifier.ChangeFunc) func() {
	return m.hub.Subscribe(id, fn)
}

// CreateSubscription stores a materialized subscription.
func (m *Memory) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subs[sub.ID]; exists {
		return fmt.Errorf("subscription %s already exists: %w", sub.ID, ErrWrite)
	}
	m.subs[sub.ID] = *sub
	return nil
}

// GetSubscription retrieves a subscription by id.
func (m *Memory) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

// DeleteSubscription removes a subscription (compensation path).
func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[id]; !ok {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	delete(m.subs, id)
	return nil
}

// SubscriptionCount reports the number of stored subscriptions.
func (m *Memory) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Subscriptions adapts the memory store to the SubscriptionStore interface.
func (m *Memory) Subscriptions() SubscriptionStore {
	return memorySubscriptions{m}
}

type memorySubscriptions struct {
	m *Memory
}

func (s memorySubscriptions) Create(ctx context.Context, sub *models.Subscription) error {
	return s.m.CreateSubscription(ctx, sub)
}

func (s memorySubscriptions) Get(ctx context.Context, id string) (*models.Subscription, error) {
	return s.m.GetSubscription(ctx, id)
}

func (s memorySubscriptions) Delete(ctx context.Context, id string) error {
	return s.m.DeleteSubscription(ctx, id)
}
