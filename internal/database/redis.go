package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions tunes the clients built from one Redis URL.
type RedisOptions struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// QueueWorkers is how many goroutines block on BLPOP at once.
	QueueWorkers int
}

// RedisClients splits Redis traffic by role so blocking pops and
// subscriptions never starve the session cache.
type RedisClients struct {
	// Cache backs session snapshots and event publishing.
	Cache *redis.Client
	// Queue carries the progress queue and its dedupe keys.
	Queue *redis.Client
	// PubSub holds the per-user subscriptions of the websocket hub.
	PubSub *redis.Client
}

type redisRole string

const (
	roleCache  redisRole = "cache"
	roleQueue  redisRole = "queue"
	rolePubSub redisRole = "pubsub"
)

// roleOptions derives the options of one role's client from the parsed URL.
func roleOptions(base *redis.Options, role redisRole, o RedisOptions) *redis.Options {
	opt := *base
	opt.ClientName = fmt.Sprintf("flashquiz-%s", role)
	if o.DialTimeout > 0 {
		opt.DialTimeout = o.DialTimeout
	}
	if o.ReadTimeout > 0 {
		opt.ReadTimeout = o.ReadTimeout
	}
	if o.WriteTimeout > 0 {
		opt.WriteTimeout = o.WriteTimeout
	}
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	}

	switch role {
	case roleQueue:
		// one connection per blocked worker plus producers
		workers := o.QueueWorkers
		if workers <= 0 {
			workers = 1
		}
		opt.PoolSize = workers + 2
	case rolePubSub:
		opt.ReadTimeout = -1
	}
	return &opt
}

func NewRedisClients(o RedisOptions) (*RedisClients, error) {
	base, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clients := &RedisClients{}
	for _, role := range []redisRole{roleCache, roleQueue, rolePubSub} {
		c := redis.NewClient(roleOptions(base, role, o))
		if err := c.Ping(ctx).Err(); err != nil {
			c.Close()
			clients.Close()
			return nil, fmt.Errorf("failed to ping Redis (%s): %w", role, err)
		}
		switch role {
		case roleCache:
			clients.Cache = c
		case roleQueue:
			clients.Queue = c
		case rolePubSub:
			clients.PubSub = c
		}
	}
	return clients, nil
}

func (r *RedisClients) Close() {
	for _, c := range []*redis.Client{r.Cache, r.Queue, r.PubSub} {
		if c != nil {
			c.Close()
		}
	}
}
