package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finpilot/internal/core"
)

// SessionStore keeps chat histories keyed by session.
type SessionStore interface {
	// Load returns the history of key, or nil when there is none.
	Load(ctx context.Context, key string) ([]core.ChatMessage, error)
	Save(ctx context.Context, key string, history []core.ChatMessage) error
	Delete(ctx context.Context, key string) error
}

// SessionKey scopes a client-chosen session id to its user.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// MemorySessionStore keeps sessions in an in-process LRU.
type MemorySessionStore struct {
	lru *LRUCache[[]core.ChatMessage]
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore(maxSessions int, ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{lru: NewLRUCache[[]core.ChatMessage](maxSessions, ttl)}
}

func (s *MemorySessionStore) Load(_ context.Context, key string) ([]core.ChatMessage, error) {
	h, ok := s.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return append([]core.ChatMessage(nil), h...), nil
}

func (s *MemorySessionStore) Save(_ context.Context, key string, history []core.ChatMessage) error {
	s.lru.Set(key, append([]core.ChatMessage(nil), history...))
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.lru.Delete(key)
	return nil
}

// CleanExpired implements Cleaner
func (s *MemorySessionStore) CleanExpired() int {
	return s.lru.CleanExpired()
}

const redisKeyPrefix = "finpilot:chat:"

// RedisSessionStore keeps sessions as JSON strings in Redis with a TTL that
// is refreshed on every save.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(addr string, ttl time.Duration) *RedisSessionStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisSessionStore{client: rdb, ttl: ttl}
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisSessionStore) Load(ctx context.Context, key string) ([]core.ChatMessage, error) {
	val, err := s.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeHistory(val)
}

func (s *RedisSessionStore) Save(ctx context.Context, key string, history []core.ChatMessage) error {
	val, err := encodeHistory(history)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(key), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

func encodeHistory(history []core.ChatMessage) (string, error) {
	if history == nil {
		history = []core.ChatMessage{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(b), nil
}

func decodeHistory(val string) ([]core.ChatMessage, error) {
	var history []core.ChatMessage
	if err := json.Unmarshal([]byte(val), &history); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return history, nil
}
