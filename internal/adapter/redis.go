package adapter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient defines the interface for Redis operations to enable mocking.
// It carries the health-check cursors, the shared indexing error state, and
// the primitives the distributed indexing lock is built on.
//
//go:generate mockgen -source=redis.go -destination=../mocks/redis.go -package=mocks -mock_names=RedisClient=MockRedisClient
type RedisClient interface {
	// Get returns the value for a key, redis.Nil error when absent
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with an optional expiry (0 = no expiry)
	Set(ctx context.Context, key, value string, expiry time.Duration) error

	// SetNX stores a value only if the key does not exist, returning whether it was set
	SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error)

	// Del removes keys
	Del(ctx context.Context, keys ...string) error

	// Eval runs a Lua script, used for compare-and-delete lock release
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Ping checks if Redis is reachable
	Ping(ctx context.Context) error

	// Close closes the Redis connection
	Close() error
}

// RealRedisClient wraps the actual Redis client
type RealRedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) RedisClient {
	return &RealRedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (r *RealRedisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RealRedisClient) Set(ctx context.Context, key, value string, expiry time.Duration) error {
	return r.client.Set(ctx, key, value, expiry).Err()
}

func (r *RealRedisClient) SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, expiry).Result()
}

func (r *RealRedisClient) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RealRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return r.client.Eval(ctx, script, keys, args...).Result()
}

func (r *RealRedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RealRedisClient) Close() error {
	return r.client.Close()
}

// IsNil reports whether the error is the redis "key not found" sentinel.
func IsNil(err error) bool {
	return err == redis.Nil
}
