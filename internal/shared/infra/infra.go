// Package infra 基础设施聚合层
//
// 按配置选择并初始化：
//   - Store：持久化存储（SQLite / PostgreSQL / MongoDB / 本地键值）
//   - Bus：申请状态事件总线（内存 / Redis Streams）
//   - Archive：报表归档（MinIO，可选）
package infra

import (
	"context"
	"errors"
	"fmt"

	"campus-access/internal/config"
	"campus-access/internal/shared/eventbus"
	objstore "campus-access/internal/shared/minio"
	"campus-access/internal/shared/storage"
	"campus-access/internal/shared/storage/kvstore"
	"campus-access/pkg/logging"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Store 持久化存储
	Store storage.Store

	// Bus 事件总线
	Bus eventbus.Bus

	// Archive 报表归档，未配置时为 nil
	Archive *objstore.Client

	closers []func() error
}

// Open 按配置打开全部基础设施；任一组件失败时关闭已打开的部分
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}

	store, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	infra.Store = store
	infra.closers = append(infra.closers, store.Close)

	bus, err := OpenEventBus(cfg, log)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Bus = bus
	infra.closers = append(infra.closers, bus.Close)

	archive, err := OpenObjectStore(ctx, cfg, log)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Archive = archive

	return infra, nil
}

// Close 逆序关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

// NewMemoryInfrastructure 纯内存基础设施（用于测试）
func NewMemoryInfrastructure() *Infrastructure {
	store := kvstore.NewStore(kvstore.NewMemoryBackend(), logging.Nop())
	bus := eventbus.NewMemoryBus()
	return &Infrastructure{
		Store:   store,
		Bus:     bus,
		closers: []func() error{store.Close, bus.Close},
	}
}

// OpenObjectStore 打开 MinIO 报表归档；未配置 endpoint 时返回 nil
func OpenObjectStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*objstore.Client, error) {
	mc := objstore.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	}
	if !mc.Enabled() {
		log.Info("Report archive disabled")
		return nil, nil
	}
	client, err := objstore.NewClient(mc)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	log.Info("Report archive enabled", "endpoint", mc.Endpoint, "bucket", mc.Bucket)
	return client, nil
}
