package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks which issued session ids are still live. Logout removes
// the id so a token that is otherwise valid stops working.
type SessionStore interface {
	Save(ctx context.Context, sessionID, username string, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (username string, ok bool, err error)
	Delete(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	username  string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), now: time.Now}
}

// Save records the session and drops any entries that have already expired.
func (m *MemoryStore) Save(_ context.Context, sessionID, username string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, id)
		}
	}
	m.sessions[sessionID] = memoryEntry{username: username, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.sessions, sessionID)
		return "", false, nil
	}
	return entry.username, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

const sessionKeyPrefix = "inventory:session:"

// RedisStore keeps sessions in Redis with a TTL so several server processes
// can share logins.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Save(ctx context.Context, sessionID, username string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, username, ttl).Err()
}

func (r *RedisStore) Lookup(ctx context.Context, sessionID string) (string, bool, error) {
	username, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return username, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
