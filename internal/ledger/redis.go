package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "socialsync:claim:"

// Redis keeps claims as expiring keys written with SET NX.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis returns a ledger on client. A zero ttl keeps claims forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: defaultPrefix}
}

// NewRedisFromURL parses a redis:// URL or a bare host:port address and pings
// the server.
func NewRedisFromURL(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), time.Now().UTC().Format(time.RFC3339Nano), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
