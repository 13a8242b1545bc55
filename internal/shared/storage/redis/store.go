// Package redis Redis 键值后端
//
// 为 kvstore 提供 Get/Set/Delete，所有键统一加前缀，便于与其他应用共用实例。
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campus-access/internal/shared/storage/kvstore"
	"campus-access/pkg/logging"
)

// DefaultPrefix 默认键前缀
const DefaultPrefix = "campus-access:"

// Store Redis 后端
type Store struct {
	client *redis.Client
	prefix string
}

var _ kvstore.Backend = (*Store)(nil)

// NewStore 创建 Redis 后端
func NewStore(addr, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return connect(client, prefix)
}

// NewStoreFromURL 从 URL 创建 Redis 后端
func NewStoreFromURL(redisURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return connect(redis.NewClient(opts), prefix)
}

func connect(client *redis.Client, prefix string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	logging.Default("redis").Info("Connected to Redis", "addr", client.Options().Addr)
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端（事件总线复用同一连接）
func (s *Store) Client() *redis.Client {
	return s.client
}
