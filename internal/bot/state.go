package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// StateAwaitingCode marks a user whose next plain message is an invitation code.
const StateAwaitingCode = "awaiting_code"

// StateStore keeps short-lived conversation state between messages.
type StateStore interface {
	Set(ctx context.Context, userID int64, state string) error
	// Take returns and clears the user's state; "" when none is set.
	Take(ctx context.Context, userID int64) (string, error)
	AllowCodeAttempt(ctx context.Context, userID int64) (bool, error)
	RecordCodeFailure(ctx context.Context, userID int64) error
}

// RedisStateStore shares conversation state across bot replicas.
type RedisStateStore struct {
	redis       *redis.Client
	ttl         time.Duration
	maxAttempts int
	window      time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration, maxAttempts int, window time.Duration) *RedisStateStore {
	return &RedisStateStore{redis: rdb, ttl: ttl, maxAttempts: maxAttempts, window: window}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("bot:state:%d", userID)
}

func attemptsKey(userID int64) string {
	return fmt.Sprintf("bot:code_attempts:%d", userID)
}

func (s *RedisStateStore) Set(ctx context.Context, userID int64, state string) error {
	return s.redis.Set(ctx, stateKey(userID), state, s.ttl).Err()
}

// Take uses GETDEL so two replicas never both consume the same state.
func (s *RedisStateStore) Take(ctx context.Context, userID int64) (string, error) {
	state, err := s.redis.GetDel(ctx, stateKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return state, err
}

func (s *RedisStateStore) AllowCodeAttempt(ctx context.Context, userID int64) (bool, error) {
	if s.maxAttempts <= 0 {
		return true, nil
	}
	count, err := s.redis.Get(ctx, attemptsKey(userID)).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return count < s.maxAttempts, nil
}

func (s *RedisStateStore) RecordCodeFailure(ctx context.Context, userID int64) error {
	key := attemptsKey(userID)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.window)
	_, err := pipe.Exec(ctx)
	return err
}

// MemoryStateStore is used when redis is unavailable. State is lost on
// restart and not shared between processes.
type MemoryStateStore struct {
	mu          sync.Mutex
	ttl         time.Duration
	maxAttempts int
	window      time.Duration
	states      map[int64]memoryEntry
	attempts    map[int64]memoryEntry
	now         func() time.Time
}

type memoryEntry struct {
	value     string
	count     int
	expiresAt time.Time
}

func NewMemoryStateStore(ttl time.Duration, maxAttempts int, window time.Duration) *MemoryStateStore {
	return &MemoryStateStore{
		ttl:         ttl,
		maxAttempts: maxAttempts,
		window:      window,
		states:      make(map[int64]memoryEntry),
		attempts:    make(map[int64]memoryEntry),
		now:         time.Now,
	}
}

func (s *MemoryStateStore) Set(_ context.Context, userID int64, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = memoryEntry{value: state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[userID]
	if !ok {
		return "", nil
	}
	delete(s.states, userID)
	if !s.now().Before(entry.expiresAt) {
		return "", nil
	}
	return entry.value, nil
}

func (s *MemoryStateStore) AllowCodeAttempt(_ context.Context, userID int64) (bool, error) {
	if s.maxAttempts <= 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.attempts[userID]
	if !ok {
		return true, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.attempts, userID)
		return true, nil
	}
	return entry.count < s.maxAttempts, nil
}

func (s *MemoryStateStore) RecordCodeFailure(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	entry, ok := s.attempts[userID]
	if !ok || !now.Before(entry.expiresAt) {
		entry = memoryEntry{}
	}
	entry.count++
	entry.expiresAt = now.Add(s.window)
	s.attempts[userID] = entry
	return nil
}

// sweep drops expired entries. Callers hold s.mu.
func (s *MemoryStateStore) sweep(now time.Time) {
	for id, entry := range s.attempts {
		if !now.Before(entry.expiresAt) {
			delete(s.attempts, id)
		}
	}
	for id, entry := range s.states {
		if !now.Before(entry.expiresAt) {
			delete(s.states, id)
		}
	}
}

func (s *MemoryStateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts) + len(s.states)
}
