// Package status publishes run status snapshots for external dashboards.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"autolearn/internal/logger"
)

// DefaultTTL keeps a finished run's status visible for a day.
const DefaultTTL = 24 * time.Hour

// Publisher receives status snapshots. Snapshots must be JSON-serialisable.
type Publisher interface {
	Publish(ctx context.Context, snapshot any) error
	Close() error
}

// NopPublisher discards snapshots.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, any) error { return nil }

func (NopPublisher) Close() error { return nil }

// RedisPublisher stores the latest snapshot under one key and announces it on
// the "<key>:events" channel.
type RedisPublisher struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPublisher connects to redisURL (redis://...) and verifies it with PING.
func NewRedisPublisher(ctx context.Context, redisURL, key string) (*RedisPublisher, error) {
	const op = "status.NewRedisPublisher"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid redis URL: %w", op, err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	log := logger.WithComponent("status")
	log.Info().Str("key", key).Msg("Publishing run status to Redis")

	return NewRedisPublisherWithClient(client, key), nil
}

// NewRedisPublisherWithClient uses an existing client.
func NewRedisPublisherWithClient(client *redis.Client, key string) *RedisPublisher {
	return &RedisPublisher{client: client, key: key, ttl: DefaultTTL}
}

// Publish overwrites the status key and notifies subscribers.
func (p *RedisPublisher) Publish(ctx context.Context, snapshot any) error {
	const op = "status.Publish"

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key, data, p.ttl)
	pipe.Publish(ctx, p.key+":events", data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
