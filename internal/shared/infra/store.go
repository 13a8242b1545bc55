package infra

import (
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"campus-access/internal/config"
	"campus-access/internal/shared/eventbus"
	eventbusredis "campus-access/internal/shared/eventbus/redis"
	"campus-access/internal/shared/storage"
	"campus-access/internal/shared/storage/dbutil"
	pgdriver "campus-access/internal/shared/storage/driver/postgres"
	sqlitedriver "campus-access/internal/shared/storage/driver/sqlite"
	"campus-access/internal/shared/storage/etcd"
	"campus-access/internal/shared/storage/kvstore"
	"campus-access/internal/shared/storage/mongostore"
	redisstore "campus-access/internal/shared/storage/redis"
	"campus-access/internal/shared/storage/repository"
	"campus-access/pkg/logging"
)

// OpenStore 根据 database.driver 创建存储
func OpenStore(cfg *config.Config, log *logging.Logger) (storage.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return migrate(db, sqlitedriver.NewDialect(), log)
	case config.DriverPostgres:
		db, err := pgdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return migrate(db, pgdriver.NewDialect(), log)
	case config.DriverMongoDB:
		store, err := mongostore.NewStore(cfg.DatabaseURL, cfg.Database.Name)
		if err != nil {
			return nil, err
		}
		log.Info("Storage ready", "driver", "mongodb", "database", cfg.Database.Name)
		return store, nil
	case config.DriverKV:
		backend, err := OpenBackend(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("Storage ready", "driver", "kv", "backend", cfg.LocalStore.Backend)
		return kvstore.NewStore(backend, log.Named("kvstore")), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func migrate(db *sql.DB, dialect dbutil.Dialect, log *logging.Logger) (storage.Store, error) {
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s auto-migrate failed: %w", dialect.DriverType(), err)
	}
	log.Info("Storage ready", "driver", dialect.DriverType())
	return repository.NewStore(db, dialect), nil
}

// OpenBackend 根据 local_store.backend 创建键值后端
func OpenBackend(cfg *config.Config) (kvstore.Backend, error) {
	switch cfg.LocalStore.Backend {
	case "", "memory":
		return kvstore.NewMemoryBackend(), nil
	case "redis":
		return redisstore.NewStoreFromURL(cfg.RedisURL, cfg.Redis.Prefix)
	case "etcd":
		return etcd.NewStore(etcd.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Prefix:      cfg.Etcd.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported local store backend: %s", cfg.LocalStore.Backend)
	}
}

// OpenEventBus 根据 events.backend 创建事件总线
func OpenEventBus(cfg *config.Config, log *logging.Logger) (eventbus.Bus, error) {
	switch cfg.Events.Backend {
	case "", "memory":
		return eventbus.NewMemoryBus(), nil
	case "redis":
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := goredis.NewClient(opts)
		log.Info("Event bus ready", "backend", "redis", "addr", opts.Addr)
		return &ownedBus{Bus: eventbusredis.NewBus(client, cfg.Redis.Prefix), client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", cfg.Events.Backend)
	}
}

// ownedBus 关闭总线时一并关闭其独占的 Redis 客户端
type ownedBus struct {
	*eventbusredis.Bus
	client *goredis.Client
}

func (b *ownedBus) Close() error {
	b.Bus.Close()
	return b.client.Close()
}
