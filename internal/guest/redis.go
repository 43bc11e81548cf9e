package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for deployments with more than one
// server instance. Sessions are stored as JSON under "guest:<session>:<persona>"
// with the configured TTL; every Put refreshes the TTL, mirroring the
// session-scoped lifetime of the in-memory store.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore constructs a RedisStore over an existing client. A ttl <= 0
// is coerced to one hour.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(sessionID, characterID string) string {
	return "guest:" + storeKey(sessionID, characterID)
}

// Get returns the stored session, or (nil, nil) when the key is absent.
func (r *RedisStore) Get(ctx context.Context, sessionID, characterID string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, redisKey(sessionID, characterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("guest: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("guest: decode session: %w", err)
	}
	return &s, nil
}

// Put stores s as JSON and refreshes the TTL.
func (r *RedisStore) Put(ctx context.Context, sessionID, characterID string, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("guest: encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKey(sessionID, characterID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("guest: redis set: %w", err)
	}
	return nil
}

// Delete removes the session key.
func (r *RedisStore) Delete(ctx context.Context, sessionID, characterID string) error {
	if err := r.rdb.Del(ctx, redisKey(sessionID, characterID)).Err(); err != nil {
		return fmt.Errorf("guest: redis del: %w", err)
	}
	return nil
}
