package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces partition keys in Redis.
const KeyPrefix = "meteocache:partition:"

const scanCount = 500

// RedisStore implements Store on top of Redis so several service instances can
// share one historical cache. Values are zstd-compressed; archive payloads are
// highly repetitive JSON and shrink by roughly an order of magnitude.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	mu      sync.RWMutex
}

// NewRedisStore creates a new Redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: partition expiration (0 keeps partitions until cleared)
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl < 0 {
		return nil, errors.New("redis ttl must be >= 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		client.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &RedisStore{
		client:  client,
		ttl:     ttl,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// conn must be called with r.mu held.
func (r *RedisStore) conn() (*redis.Client, error) {
	if r.client == nil {
		return nil, redis.ErrClosed
	}
	return r.client, nil
}

// Put stores the compressed payload under "meteocache:partition:{name}".
func (r *RedisStore) Put(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, err := r.conn()
	if err != nil {
		return err
	}

	compressed := r.encoder.EncodeAll(data, make([]byte, 0, len(data)/4))
	if err := client.Set(ctx, KeyPrefix+name, compressed, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store partition %s in redis: %w", name, err)
	}
	return nil
}

// Get returns the decompressed payload stored under name.
func (r *RedisStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if err := validateName(name); err != nil {
		return nil, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, err := r.conn()
	if err != nil {
		return nil, false, err
	}

	compressed, err := client.Get(ctx, KeyPrefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get partition %s from redis: %w", name, err)
	}

	data, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("zstd decompression of %s failed: %w", name, err)
	}
	return data, true, nil
}

// List walks the keyspace with SCAN; it never blocks the server with KEYS.
func (r *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, err := r.conn()
	if err != nil {
		return nil, err
	}

	var names []string
	iter := client.Scan(ctx, 0, KeyPrefix+prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis partitions: %w", err)
	}
	return names, nil
}

// Clear deletes every partition key in batches of scanCount.
func (r *RedisStore) Clear(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, err := r.conn()
	if err != nil {
		return err
	}

	batch := make([]string, 0, scanCount)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete redis partitions: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	iter := client.Scan(ctx, 0, KeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan redis partitions: %w", err)
	}
	return flush()
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	r.encoder.Close()
	r.decoder.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
// Returns an error if the connection is unavailable.
func (r *RedisStore) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, err := r.conn()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}
