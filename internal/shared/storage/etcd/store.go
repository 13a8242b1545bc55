// Package etcd etcd 键值后端
package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"campus-access/internal/shared/storage/kvstore"
	"campus-access/pkg/logging"
)

// Store etcd 后端
type Store struct {
	client *clientv3.Client
	prefix string
}

var _ kvstore.Backend = (*Store)(nil)

// Config etcd 配置
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

// NewStore 创建 etcd 后端
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints are required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/campus-access"
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	logging.Default("etcd").Info("Connected to etcd", "endpoints", cfg.Endpoints)
	return &Store{client: client, prefix: cfg.Prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + "/" + k
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.client.Put(ctx, s.key(key), value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Delete(ctx, s.key(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Prefix 返回 key 前缀
func (s *Store) Prefix() string {
	return s.prefix
}
