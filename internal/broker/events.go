package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"fulfillment-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes lifecycle events, keyed per order id so all
// events of one order land on one partition in commit order.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderUpdated publishes OrderUpdated event
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishReturnRequested publishes ReturnRequested event
func (ep *EventPublisher) PublishReturnRequested(ctx context.Context, event *models.ReturnRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishReturnDecided publishes ReturnDecided event
func (ep *EventPublisher) PublishReturnDecided(ctx context.Context, event *models.ReturnDecidedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishReturnCompleted publishes ReturnCompleted event
func (ep *EventPublisher) PublishReturnCompleted(ctx context.Context, event *models.ReturnCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishSubscriptionCreated publishes SubscriptionCreated event
func (ep *EventPublisher) PublishSubscriptionCreated(ctx context.Context, event *models.SubscriptionCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishInvoiceEmailed publishes InvoiceEmailed event
func (ep *EventPublisher) PublishInvoiceEmailed(ctx context.Context, event *models.InvoiceEmailedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

// EventHandler routes consumed messages to registered typed handlers.
type EventHandler struct {
	onOrderUpdated    func(context.Context, *models.OrderUpdatedEvent) error
	onReturnCompleted func(context.Context, *models.ReturnCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderUpdated registers a handler for OrderUpdated events
func (eh *EventHandler) OnOrderUpdated(handler func(context.Context, *models.OrderUpdatedEvent) error) {
	eh.onOrderUpdated = handler
}

// OnReturnCompleted registers a handler for ReturnCompleted events
func (eh *EventHandler) OnReturnCompleted(handler func(context.Context, *models.ReturnCompletedEvent) error) {
	eh.onReturnCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderUpdated:
		if eh.onOrderUpdated != nil {
			var event models.OrderUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderUpdated event: %w", err)
			}
			return eh.onOrderUpdated(ctx, &event)
		}

	case models.EventTypeReturnCompleted:
		if eh.onReturnCompleted != nil {
			var event models.ReturnCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReturnCompleted event: %w", err)
			}
			return eh.onReturnCompleted(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
