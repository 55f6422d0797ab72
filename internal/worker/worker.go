package worker

import (
	"context"
	"errors"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/lifecycle"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// InvoiceWorker watches the lifecycle event stream and emails the invoice
// once an order's payment lands. Delivery failures leave the message
// uncommitted so it is retried; precondition failures (the order moved on,
// e.g. was refunded before the worker got to it) are dropped.
type InvoiceWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	engine       *lifecycle.Engine
	logger       *zap.Logger
}

// NewInvoiceWorker creates a new invoice worker
func NewInvoiceWorker(consumer *broker.Consumer, engine *lifecycle.Engine) *InvoiceWorker {
	w := &InvoiceWorker{
		consumer: consumer,
		engine:   engine,
		logger:   util.NamedLogger("invoice-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderUpdated(w.handleOrderUpdated)
	w.eventHandler = eventHandler
	return w
}

func (w *InvoiceWorker) handleOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error {
	if event.Axis != string(lifecycle.AxisPayment) || event.To != string(models.PaymentStatusPaid) {
		return nil
	}

	w.logger.Info("Emailing invoice for paid order",
		zap.String("order_id", event.OrderID))

	err := w.engine.EmailInvoice(ctx, event.OrderID)
	if err == nil {
		return nil
	}
	if errors.Is(err, lifecycle.ErrPrecondition) {
		w.logger.Warn("Order no longer invoiceable, dropping event",
			zap.String("order_id", event.OrderID), zap.Error(err))
		return nil
	}

	w.logger.Error("Invoice email failed, will retry",
		zap.String("order_id", event.OrderID), zap.Error(err))
	return err
}

// Start starts the worker
func (w *InvoiceWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting invoice worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *InvoiceWorker) Stop() error {
	w.logger.Info("Stopping invoice worker")
	return w.consumer.Close()
}
