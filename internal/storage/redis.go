package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/database"
)

const keyPrefix = "storefront:"

// Redis keeps values in Redis under "storefront:<namespace>:<key>", so that
// several agent processes can share one shopper's session state.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis creates a Redis-backed storage scoped to namespace.
func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key(k string) string {
	return keyPrefix + r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (v string, found bool, err error) {
	ctx, end := database.TraceOp(ctx, "GET", r.key(key))
	defer func() { end(err) }()

	v, err = r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceOp(ctx, "SET", r.key(key))
	defer func() { end(err) }()

	if err = r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	ctx, end := database.TraceOp(ctx, "DEL", strings.Join(full, " "))
	defer func() { end(err) }()

	if err = r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// PoolStats exposes the client's connection pool statistics.
func (r *Redis) PoolStats() *redis.PoolStats {
	return r.client.PoolStats()
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
