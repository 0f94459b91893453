package subscriptions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps subscriptions in process memory. Suited to tests and
// single-process deployments; anything multi-node should use RedisStore.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[string]Subscription),
		now:  time.Now,
	}
}

func (s *MemoryStore) CreateSubscription(_ context.Context, executionID, eventType string, filter map[string]any, timeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := eventType + ":" + uuid.New().String()

	s.subs[id] = Subscription{
		ID:          id,
		ExecutionID: executionID,
		EventType:   eventType,
		Filter:      filter,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
	}

	return id, nil
}

func (s *MemoryStore) Match(_ context.Context, eventType string, payload map[string]any) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()

	var matched []Subscription

	for _, sub := range s.subs {
		if sub.EventType != eventType || now.After(sub.ExpiresAt) {
			continue
		}

		if sub.Matches(payload) {
			matched = append(matched, sub)
		}
	}

	return matched, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, id)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
