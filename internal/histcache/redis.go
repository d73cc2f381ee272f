package histcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
)

// Redis backs the lookup cache with a shared Redis instance so a
// restarted process keeps its accumulated history. Entries are stored
// without expiry; past prices are final.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (c *Redis) Get(ctx context.Context, metal metals.Metal, day time.Time) (Entry, bool) {
	data, err := c.client.Get(ctx, key(metal, day)).Bytes()
	if err != nil {
		if err != redis.Nil {
			observ.IncCounter("histcache_redis_errors_total", map[string]string{"op": "get"})
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		observ.IncCounter("histcache_redis_errors_total", map[string]string{"op": "decode"})
		return Entry{}, false
	}
	return e, true
}

func (c *Redis) Put(ctx context.Context, metal metals.Metal, day time.Time, e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(metal, day), data, 0).Err(); err != nil {
		observ.IncCounter("histcache_redis_errors_total", map[string]string{"op": "set"})
	}
}

func (c *Redis) Close() error { return c.client.Close() }
