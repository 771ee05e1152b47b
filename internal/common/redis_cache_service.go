package common

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fieldops/portal-sync/internal/logging"

	"github.com/redis/go-redis/v9"
)

// RedisCacheService implements CacheInterface using Redis so every instance
// shares one upstream response cache. Values round-trip through JSON.
type RedisCacheService struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// Ensure RedisCacheService implements CacheInterface
var _ CacheInterface = (*RedisCacheService)(nil)

// NewRedisCacheService wraps an existing client; keys are stored under prefix
func NewRedisCacheService(client *redis.Client, prefix string) *RedisCacheService {
	return &RedisCacheService{
		client:  client,
		prefix:  prefix,
		timeout: 3 * time.Second,
	}
}

func (r *RedisCacheService) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":cache:" + k
}

// Set stores a value in Redis with the given key and duration
func (r *RedisCacheService) Set(key string, value interface{}, duration time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logging.Warn("Redis cache: failed to marshal value", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), data, duration).Err(); err != nil {
		logging.Warn("Redis cache: failed to set key", "key", key, "error", err)
	}
}

// Get retrieves a value from Redis by key
func (r *RedisCacheService) Get(key string) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis cache: failed to get key", "key", key, "error", err)
		return nil, false
	}

	var result interface{}
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		logging.Warn("Redis cache: failed to unmarshal value", "key", key, "error", err)
		return nil, false
	}

	return result, true
}

// Delete removes a value from Redis by key
func (r *RedisCacheService) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		logging.Warn("Redis cache: failed to delete key", "key", key, "error", err)
	}
}

// DeletePrefix scans for keys under prefix and deletes them in batches
func (r *RedisCacheService) DeletePrefix(prefix string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, globEscaper.Replace(r.key(prefix))+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			r.del(ctx, prefix, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		logging.Warn("Redis cache: failed to scan keys", "prefix", prefix, "error", err)
	}
	if len(batch) > 0 {
		r.del(ctx, prefix, batch)
	}
}

func (r *RedisCacheService) del(ctx context.Context, prefix string, keys []string) {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		logging.Warn("Redis cache: failed to delete keys", "prefix", prefix, "error", err)
	}
}

// globEscaper quotes the characters SCAN MATCH treats as patterns
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// Close is a no-op; the shared client is closed by its owner
func (r *RedisCacheService) Close() error {
	return nil
}
