// Package kvstore 键值存储实现
//
// 将用户列表、申请列表与元数据各自序列化为一个 JSON 值，
// 写入可插拔的键值后端（内存、Redis、etcd）。
// 适合单实例部署与本地演示；读-改-写由进程内互斥锁保护。
package kvstore

import (
	"context"
	"sync"
)

// Backend 键值后端
type Backend interface {
	// Get 键不存在时返回 ("", false, nil)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryBackend 进程内后端（测试与演示用）
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
