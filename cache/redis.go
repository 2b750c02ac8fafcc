package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned by RedisClient methods on a nil client
var ErrUnavailable = errors.New("redis client not initialized")

// releaseScript deletes a lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient wraps redis.Client
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client. It returns nil when the server
// does not answer a ping; callers treat a nil client as "no cache".
func NewRedisClient(addr, password string, log logrus.FieldLogger) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", addr).Warn("Failed to connect to Redis, continuing without cache")
		client.Close()
		return nil
	}

	log.WithField("addr", addr).Info("Connected to Redis")
	return &RedisClient{client: client}
}

// Set stores a value in Redis with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get retrieves a value from Redis
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete removes a key from Redis
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Del(ctx, key).Err()
}

// Exists checks if a key exists in Redis
func (r *RedisClient) Exists(ctx context.Context, key string) bool {
	if r == nil || r.client == nil {
		return false
	}

	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false
	}

	return result > 0
}

// Publish sends a JSON message to a channel
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, channel, jsonBytes).Err()
}

// AcquireLock sets key to token if it is free. The lock expires after ttl
// so a crashed holder cannot block later runs forever.
func (r *RedisClient) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if r == nil || r.client == nil {
		return false, ErrUnavailable
	}
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLock frees key if token still owns it
func (r *RedisClient) ReleaseLock(ctx context.Context, key, token string) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}
