package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdempotencyEntry is a stored response replayed for a repeated Idempotency-Key.
type IdempotencyEntry struct {
	RequestHash  string `json:"request_hash"`
	StatusCode   int    `json:"status_code"`
	ResponseBody []byte `json:"response_body"`
}

// IdempotencyStore keeps replayable responses in Redis, scoped per user.
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func idempotencyKey(userID uuid.UUID, key string) string {
	return "idempotency:" + userID.String() + ":" + key
}

// Get returns nil, nil on a miss.
func (s *IdempotencyStore) Get(ctx context.Context, userID uuid.UUID, key string) (*IdempotencyEntry, error) {
	val, err := s.client.Get(ctx, idempotencyKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var entry IdempotencyEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("Get: unmarshal: %w", err)
	}
	return &entry, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, userID uuid.UUID, key string, entry *IdempotencyEntry, ttl time.Duration) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("Save: marshal: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKey(userID, key), b, ttl).Err(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Begin marks key as in flight. It reports false when another request with the
// same key has not finished yet.
func (s *IdempotencyStore) Begin(ctx context.Context, userID uuid.UUID, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKey(userID, key)+":inflight", 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("Begin: %w", err)
	}
	return ok, nil
}

func (s *IdempotencyStore) End(ctx context.Context, userID uuid.UUID, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(userID, key)+":inflight").Err(); err != nil {
		return fmt.Errorf("End: %w", err)
	}
	return nil
}
