package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flashquiz-backend/internal/models"
)

// SessionCache keeps the latest session snapshot in Redis in front of
// Postgres.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, ttl: ttl}
}

func sessionCacheKey(key models.SessionKey) string {
	return fmt.Sprintf("quiz_session:%s:%s:%s", key.UserID, key.SetID, key.QuizType)
}

// Get returns ErrNotFound on a cache miss.
func (c *SessionCache) Get(ctx context.Context, key models.SessionKey) (*models.SessionState, error) {
	raw, err := c.rdb.Get(ctx, sessionCacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st := &models.SessionState{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return st, nil
}

func (c *SessionCache) Set(ctx context.Context, key models.SessionKey, st *models.SessionState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, sessionCacheKey(key), raw, c.ttl).Err()
}

func (c *SessionCache) Delete(ctx context.Context, key models.SessionKey) error {
	return c.rdb.Del(ctx, sessionCacheKey(key)).Err()
}
