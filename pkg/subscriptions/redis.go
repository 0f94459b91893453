package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "sendloop:subscriptions:"

// RedisStore persists subscriptions in Redis, one key per subscription,
// with the wait timeout as the key TTL. Expiry therefore needs no sweeper:
// the due-execution scheduler handles timed-out waits and Redis drops the
// stale registration on its own.
type RedisStore struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisStore(ctx context.Context, logger *slog.Logger, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.With("module", "subscriptions", "addr", opts.Addr)
	logger.InfoContext(ctx, "Connected to Redis")

	return &RedisStore{client: client, logger: logger}, nil
}

func (s *RedisStore) CreateSubscription(ctx context.Context, executionID, eventType string, filter map[string]any, timeout time.Duration) (string, error) {
	now := time.Now().UTC()
	id := eventType + ":" + uuid.New().String()

	sub := Subscription{
		ID:          id,
		ExecutionID: executionID,
		EventType:   eventType,
		Filter:      filter,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+id, data, timeout).Err(); err != nil {
		return "", fmt.Errorf("failed to store subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "Created event subscription",
		"subscription_id", id, "execution_id", executionID, "event_type", eventType)

	return id, nil
}

func (s *RedisStore) Match(ctx context.Context, eventType string, payload map[string]any) ([]Subscription, error) {
	var matched []Subscription

	iter := s.client.Scan(ctx, 0, keyPrefix+eventType+":*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			return nil, fmt.Errorf("failed to read subscription: %w", err)
		}

		var sub Subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			s.logger.WarnContext(ctx, "Dropping undecodable subscription",
				"key", iter.Val(), "error", err)

			continue
		}

		if sub.Matches(payload) {
			matched = append(matched, sub)
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	return matched, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
