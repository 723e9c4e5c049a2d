package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	errx "github.com/directors-cut/server/internal/core/error"
	"github.com/directors-cut/server/internal/story"
	logx "github.com/directors-cut/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// StateStore persists story-state snapshots per session. Persistence is
// best-effort: callers log store errors and keep the session alive.
type StateStore interface {
	Save(ctx context.Context, sessionID string, state story.State) error
	Load(ctx context.Context, sessionID string) (story.State, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type RedisStateStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateStore(rdb redis.Cmdable, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStateStore) stateKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

func (r *RedisStateStore) Save(ctx context.Context, sessionID string, state story.State) error {
	b, err := json.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal session state")
		return fmt.Errorf("marshal session state: %w", err)
	}
	key := r.stateKey(sessionID)

	// overwrite snapshot, refresh TTL on touch
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save session state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateStore) Load(ctx context.Context, sessionID string) (story.State, bool, error) {
	key := r.stateKey(sessionID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return story.State{}, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session state from redis")
		return story.State{}, false, errx.WrapRedis(err)
	}

	var state story.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to unmarshal session state")
		return story.State{}, false, fmt.Errorf("unmarshal session state: %w", err)
	}
	return state, true, nil
}

func (r *RedisStateStore) Delete(ctx context.Context, sessionID string) error {
	key := r.stateKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete session state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ StateStore = (*RedisStateStore)(nil)

// MemoryStore keeps snapshots in process memory. Used when Redis is not
// configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]story.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]story.State)}
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, state story.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = state
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (story.State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[sessionID]
	return state, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

var _ StateStore = (*MemoryStore)(nil)
