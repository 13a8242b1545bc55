// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：repository/（SQLite、PostgreSQL）、mongostore/、kvstore/
//   - 初始化时通过 infra 包按配置选择实现并注入
//
// 约定：
//   - 实体不存在时 Get 系列方法返回 (nil, nil)，更新类方法返回 ErrNotFound
//   - 登录标识冲突返回 ErrDuplicate
//   - 返回值均为副本，调用方修改不会影响存储
package storage

import (
	"context"
	"time"

	"campus-access/internal/shared/model"
)

// 元数据键
const (
	// MetaKeyAppInitialized 种子数据写入标记
	MetaKeyAppInitialized = "appInitialized"
	// MetaKeySession 当前会话用户
	MetaKeySession = "user"
)

// IdentityStore 用户存储
type IdentityStore interface {
	// UpsertUser 按 ID 插入或更新用户；邮箱/用户名与其他用户冲突时返回 ErrDuplicate
	UpsertUser(ctx context.Context, user *model.User) error
	// GetUserByIdentifier 按邮箱或用户名查找（大小写不敏感）
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// RequestStore 申请存储
type RequestStore interface {
	// CreateRequest 新增申请（列表头部）
	CreateRequest(ctx context.Context, req *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	// ListRequests 按最新优先返回全部申请
	ListRequests(ctx context.Context) ([]*model.Request, error)
	// UpdateRequestStatus 写入状态；actorID 为空时不修改处理人与处理时间
	UpdateRequestStatus(ctx context.Context, id string, status model.Status, actorID string, at time.Time) error
	// ListRequestsByRequesterEmail 按申请人邮箱查找（大小写不敏感）
	ListRequestsByRequesterEmail(ctx context.Context, email string) ([]*model.Request, error)
}

// MetaStore 键值元数据（种子标记、会话）
type MetaStore interface {
	// GetMeta 键不存在时返回 ("", false, nil)
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
	DeleteMeta(ctx context.Context, key string) error
}

// Store 完整存储接口
type Store interface {
	IdentityStore
	RequestStore
	MetaStore
	Close() error
}
