package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// mirrored levels can lag concurrent writers; a short TTL bounds the drift
const stockMirrorTTL = 5 * time.Minute

func inventoryKey(itemID string) string {
	return fmt.Sprintf("inventory:%s", itemID)
}

// SetStock mirrors the remaining units of a merchandise item. The database
// stays authoritative; the mirror only serves availability reads.
func (c *Client) SetStock(ctx context.Context, itemID string, available int) error {
	key := inventoryKey(itemID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "available", available, "synced_at", time.Now().UTC().Unix())
	pipe.Expire(ctx, key, stockMirrorTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// GetStock reads a mirrored stock level. ok is false when the item has not
// been mirrored yet.
func (c *Client) GetStock(ctx context.Context, itemID string) (available int, ok bool, err error) {
	v, err := c.rdb.HGet(ctx, inventoryKey(itemID), "available").Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	available, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock mirror for item %s: %w", itemID, err)
	}
	return available, true, nil
}

// InvalidateStock drops the mirror of an item
func (c *Client) InvalidateStock(ctx context.Context, itemID string) error {
	return c.rdb.Del(ctx, inventoryKey(itemID)).Err()
}

// MarkDelivered records that a notification was handled. It reports false if
// the same key was already marked within ttl, so redelivered broker messages
// are not sent twice.
func (c *Client) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("notified:%s", key), "1", ttl).Result()
}

// UnmarkDelivered clears a delivery mark after a failed send so a retry can run
func (c *Client) UnmarkDelivered(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("notified:%s", key)).Err()
}
