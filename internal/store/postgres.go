package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notifier"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Postgres is the production OrderStore and SubscriptionStore adapter.
// Single-order writes are linearized with an optimistic version column.
type Postgres struct {
	db  *sqlx.DB
	hub *notifier.Hub
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(databaseURL string, hub *notifier.Hub) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db, hub: hub}, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Hub exposes the notifier hub used for commit fan-out.
func (p *Postgres) Hub() *notifier.Hub {
	return p.hub
}

func (p *Postgres) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := p.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (p *Postgres) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	query := "SELECT * FROM orders WHERE 1=1"
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.PaymentStatus != nil {
		args = append(args, *filter.PaymentStatus)
		query += fmt.Sprintf(" AND payment_status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var orders []models.Order
	err := p.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

func (p *Postgres) Create(ctx context.Context, order *models.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}

	query := `
		INSERT INTO orders (
			id, customer_name, customer_email, customer_phone,
			product_id, product_name, unit_price, quantity,
			option_name, option_duration, requires_shipping, total_price,
			status, payment_status, shipping_status, return_status,
			version, created_at, updated_at
		) VALUES (
			:id, :customer_name, :customer_email, :customer_phone,
			:product_id, :product_name, :unit_price, :quantity,
			:option_name, :option_duration, :requires_shipping, :total_price,
			:status, :payment_status, :shipping_status, :return_status,
			:version, :created_at, :updated_at
		)`

	if _, err := p.db.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("insert order %s: %v: %w", order.ID, err, ErrWrite)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, id string, upd models.OrderUpdate, expectedVersion int64) (*models.Order, error) {
	sets := []string{"version = version + 1"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("updated_at", upd.UpdatedAt)
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.PaymentStatus != nil {
		add("payment_status", *upd.PaymentStatus)
	}
	if upd.ShippingStatus != nil {
		add("shipping_status", *upd.ShippingStatus)
	}
	if upd.ReturnStatus != nil {
		add("return_status", *upd.ReturnStatus)
	}
	if upd.ReturnReason != nil {
		add("return_reason", *upd.ReturnReason)
	}
	if upd.RefundAmount != nil {
		add("refund_amount", *upd.RefundAmount)
	}
	if upd.RefundMethod != nil {
		add("refund_method", *upd.RefundMethod)
	}
	if upd.SubscriptionID != nil {
		add("subscription_id", *upd.SubscriptionID)
	}
	if upd.ConfirmedAt != nil {
		add("confirmed_at", *upd.ConfirmedAt)
	}
	if upd.PaidAt != nil {
		add("paid_at", *upd.PaidAt)
	}
	if upd.ShippedAt != nil {
		add("shipped_at", *upd.ShippedAt)
	}
	if upd.DeliveredAt != nil {
		add("delivered_at", *upd.DeliveredAt)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}
	if upd.CancelledAt != nil {
		add("cancelled_at", *upd.CancelledAt)
	}
	if upd.ReturnRequestedAt != nil {
		add("return_requested_at", *upd.ReturnRequestedAt)
	}
	if upd.ReturnApprovedAt != nil {
		add("return_approved_at", *upd.ReturnApprovedAt)
	}
	if upd.ReturnCompletedAt != nil {
		add("return_completed_at", *upd.ReturnCompletedAt)
	}
	if upd.RefundCompletedAt != nil {
		add("refund_completed_at", *upd.RefundCompletedAt)
	}

	args = append(args, id)
	idArg := len(args)
	args = append(args, expectedVersion)
	versionArg := len(args)

	query := fmt.Sprintf(
		"UPDATE orders SET %s WHERE id = $%d AND version = $%d RETURNING *",
		strings.Join(sets, ", "), idArg, versionArg)

	var order models.Order
	err := p.db.GetContext(ctx, &order, query, args...)
	if err == sql.ErrNoRows {
		// Stale version and unknown id both yield zero rows; disambiguate.
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("order %s, expected version %d: %w",
			id, expectedVersion, ErrVersionConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update order %s: %v: %w", id, err, ErrWrite)
	}

	p.hub.Commit(order)
	return &order, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete order %s: %v: %w", id, err, ErrWrite)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Subscribe(id string, fn notifier.ChangeFunc) func() {
	return p.hub.Subscribe(id, fn)
}

// Subscriptions adapts the postgres store to the SubscriptionStore interface.
func (p *Postgres) Subscriptions() SubscriptionStore {
	return pgSubscriptions{p}
}

type pgSubscriptions struct {
	p *Postgres
}

func (s pgSubscriptions) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, order_id, customer_name, customer_email,
			plan_name, price, duration_months,
			starts_at, ends_at, status, created_at
		) VALUES (
			:id, :order_id, :customer_name, :customer_email,
			:plan_name, :price, :duration_months,
			:starts_at, :ends_at, :status, :created_at
		)`

	if _, err := s.p.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("insert subscription %s: %v: %w", sub.ID, err, ErrWrite)
	}
	return nil
}

func (s pgSubscriptions) Get(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.p.db.GetContext(ctx, &sub, "SELECT * FROM subscriptions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s pgSubscriptions) Delete(ctx context.Context, id string) error {
	_, err := s.p.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %v: %w", id, err, ErrWrite)
	}
	return nil
}
