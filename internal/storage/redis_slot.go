package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return client, nil
}

// RedisSlotStore keeps one string value per slot.
type RedisSlotStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSlotStore connects to Redis and returns a slot store.
func NewRedisSlotStore(ctx context.Context, cfg RedisConfig) (*RedisSlotStore, error) {
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisSlotStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisSlotStoreFromClient wraps an existing client. Close closes it.
func NewRedisSlotStoreFromClient(client *redis.Client, prefix string) *RedisSlotStore {
	return &RedisSlotStore{client: client, prefix: prefix}
}

func (s *RedisSlotStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get implements SlotStore.
func (s *RedisSlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	return blob, nil
}

// Put implements SlotStore.
func (s *RedisSlotStore) Put(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, s.buildKey(key), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Close implements SlotStore.
func (s *RedisSlotStore) Close() error {
	return s.client.Close()
}

// RedisSummarySink publishes chat summaries: the latest summary is kept
// under key and every summary is also broadcast on channel.
type RedisSummarySink struct {
	client  *redis.Client
	key     string
	channel string
}

// NewRedisSummarySink wraps client. Either key or channel may be empty to
// skip that half.
func NewRedisSummarySink(client *redis.Client, key, channel string) *RedisSummarySink {
	return &RedisSummarySink{client: client, key: key, channel: channel}
}

// Send stores and broadcasts payload in one round trip.
func (s *RedisSummarySink) Send(ctx context.Context, payload []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if s.key != "" {
			pipe.Set(ctx, s.key, payload, 0)
		}
		if s.channel != "" {
			pipe.Publish(ctx, s.channel, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: send summary: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSummarySink) Close() error {
	return s.client.Close()
}
