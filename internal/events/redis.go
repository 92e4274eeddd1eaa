package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

// RedisStreamPublisher appends messages to a Redis stream, trimmed approximately to maxLen entries.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 100_000}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			headerMessageID: msg.ID.String(),
			headerTopic:     msg.Topic,
			"key":           msg.Key,
			"payload":       string(msg.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("RedisStreamPublisher.Publish: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisStreamPublisher) Close() error { return nil }
