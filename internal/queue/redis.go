package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/krobus00/futures-feed-service/internal/entity"
)

// ControlQueue is the FIFO of pending subscription requests. Pop is
// destructive; a request stays queued until a collector takes it, so
// nothing is lost across a disconnect window.
type ControlQueue interface {
	Pop(ctx context.Context) (*entity.SubscriptionRequest, error)
	Push(ctx context.Context, req entity.SubscriptionRequest) error
	Len(ctx context.Context) (int64, error)
	Close() error
}

type RedisControlQueue struct {
	client *redis.Client
	key    string
}

func NewRedisControlQueue(cacheDSN, key string) (*RedisControlQueue, error) {
	if cacheDSN == "" {
		return nil, fmt.Errorf("redis cache_dsn is required")
	}

	options, err := redis.ParseURL(cacheDSN)
	if err != nil {
		return nil, fmt.Errorf("parse redis cache_dsn: %w", err)
	}

	return &RedisControlQueue{client: redis.NewClient(options), key: key}, nil
}

// Pop takes the oldest pending request, or nil when the queue is empty.
func (q *RedisControlQueue) Pop(ctx context.Context) (*entity.SubscriptionRequest, error) {
	raw, err := q.client.LPop(ctx, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop subscription request: %w", err)
	}

	var req entity.SubscriptionRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("decode subscription request %q: %w", raw, err)
	}
	return &req, nil
}

func (q *RedisControlQueue) Push(ctx context.Context, req entity.SubscriptionRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *RedisControlQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisControlQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisControlQueue) Close() error {
	return q.client.Close()
}
