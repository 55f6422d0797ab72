package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const orderChangesChannel = "order-changes"

// changeMessage is the wire form of a committed order on the pub/sub
// channel. Origin lets a replica skip its own publications, whose local
// observers were already notified at commit time.
type changeMessage struct {
	Origin string       `json:"origin"`
	Order  models.Order `json:"order"`
}

// Client bridges committed order changes between service replicas over
// redis pub/sub, and provides the best-effort locks used to collapse
// duplicate operator actions.
type Client struct {
	rdb      *redis.Client
	instance string
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:      rdb,
		instance: uuid.New().String(),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PublishOrderChange announces a committed order state to other replicas.
func (c *Client) PublishOrderChange(ctx context.Context, order models.Order) error {
	msg := changeMessage{Origin: c.instance, Order: order}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal order change: %w", err)
	}
	return c.rdb.Publish(ctx, orderChangesChannel, payload).Err()
}

// SubscribeOrderChanges feeds committed orders from other replicas into fn
// until ctx is cancelled. Own publications are skipped.
func (c *Client) SubscribeOrderChanges(ctx context.Context, fn func(models.Order)) error {
	sub := c.rdb.Subscribe(ctx, orderChangesChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				continue
			}
			if change.Origin == c.instance {
				continue
			}
			fn(change.Order)
		}
	}
}

// AcquireLock acquires a distributed lock with a TTL. Returns false when
// another holder has it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), c.instance, ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
