package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "broadcast"

// RedisPublisher forwards events to a Redis pub/sub channel as JSON.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisPublisher connects to the Redis server at url (redis://...).
func NewRedisPublisher(ctx context.Context, url, channel string, logger *log.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", shared.ErrServiceUnavailable, err)
	}

	return newRedisPublisher(rdb, channel, logger), nil
}

func newRedisPublisher(rdb *redis.Client, channel string, logger *log.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: shared.WithLogger(logger, "component", "redis")}
}

// Send publishes a single event.
func (p *RedisPublisher) Send(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, string(data)).Err()
}

// Forward publishes events from in until it is closed or ctx is done. Failures are logged.
func (p *RedisPublisher) Forward(ctx context.Context, in <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			if err := p.Send(ctx, e); err != nil {
				p.logger.Warn("failed to publish event", "type", e.Type, "error", err)
			}
		}
	}
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
