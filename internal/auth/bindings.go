package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bindings is the server-side table mapping opaque session ids to user ids.
type Bindings interface {
	Bind(ctx context.Context, sid string, userID int64, ttl time.Duration) error
	Lookup(ctx context.Context, sid string) (int64, bool, error)
	Unbind(ctx context.Context, sid string) error
}

type memoryBinding struct {
	userID    int64
	expiresAt time.Time
}

// MemoryBindings keeps bindings for the lifetime of the process.
type MemoryBindings struct {
	mu       sync.Mutex
	bindings map[string]memoryBinding
	now      func() time.Time
}

func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{
		bindings: make(map[string]memoryBinding),
		now:      time.Now,
	}
}

func (m *MemoryBindings) Bind(_ context.Context, sid string, userID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bindings[sid] = memoryBinding{userID: userID, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBindings) Lookup(_ context.Context, sid string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	binding, ok := m.bindings[sid]
	if !ok {
		return 0, false, nil
	}
	if !m.now().Before(binding.expiresAt) {
		delete(m.bindings, sid)
		return 0, false, nil
	}
	return binding.userID, true, nil
}

func (m *MemoryBindings) Unbind(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.bindings, sid)
	return nil
}

const redisKeyPrefix = "session:"

// RedisBindings stores bindings in Redis so sessions survive restarts and
// are shared between replicas.
type RedisBindings struct {
	client *redis.Client
}

func NewRedisBindings(client *redis.Client) *RedisBindings {
	return &RedisBindings{client: client}
}

func (r *RedisBindings) Bind(ctx context.Context, sid string, userID int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisKeyPrefix+sid, strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis: bind session: %w", err)
	}
	return nil
}

func (r *RedisBindings) Lookup(ctx context.Context, sid string) (int64, bool, error) {
	userID, err := r.client.Get(ctx, redisKeyPrefix+sid).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis: lookup session: %w", err)
	}
	return userID, true, nil
}

func (r *RedisBindings) Unbind(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("redis: unbind session: %w", err)
	}
	return nil
}
