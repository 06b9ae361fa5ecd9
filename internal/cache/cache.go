// Package cache holds the investor snapshot cache backends.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("key not found")

// Client is a thin wrapper over a go-redis client.
type Client struct {
	client *redis.Client
}

func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}

	slog.Info("connected to redis", "addr", addr)

	return &Client{client: client}, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}

	if err != nil {
		return "", err
	}

	return val, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Counter reads an integer counter. A missing key reads as zero.
func (c *Client) Counter(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return val, err
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Noop is used when no redis address is configured. Every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error) {
	return "", ErrKeyNotFound
}

func (Noop) Set(context.Context, string, any, time.Duration) error {
	return nil
}

func (Noop) Counter(context.Context, string) (int64, error) {
	return 0, nil
}

func (Noop) Incr(context.Context, string) (int64, error) {
	return 0, nil
}

func (Noop) Close() error {
	return nil
}
