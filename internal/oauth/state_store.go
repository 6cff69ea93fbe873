package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateMismatch is returned when a callback carries an unknown or
// already-consumed state parameter.
var ErrStateMismatch = errors.New("oauth: unknown or replayed state parameter")

// StateStore issues one-time state nonces for the authorization-code
// flow and consumes them exactly once on callback.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RedisStateStore keeps pending states in Redis with a TTL, so a state
// survives the process restart that a webview relaunch can cause.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) key(state string) string {
	return "authbridge:oauth:state:" + state
}

func (s *RedisStateStore) Issue(ctx context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(state), "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) error {
	deleted, err := s.client.Del(ctx, s.key(state)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrStateMismatch
	}
	return nil
}

// MemoryStateStore is the in-process StateStore used by tests and local
// development.
type MemoryStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]time.Time
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{ttl: ttl, pending: make(map[string]time.Time)}
}

func (s *MemoryStateStore) Issue(_ context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[state] = time.Now().Add(s.ttl)
	return state, nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.pending[state]
	if !ok {
		return ErrStateMismatch
	}
	delete(s.pending, state)
	if time.Now().After(expires) {
		return ErrStateMismatch
	}
	return nil
}
