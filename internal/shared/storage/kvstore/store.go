package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

// 固定键
const (
	keyUsers    = "users"
	keyRequests = "requests"
)

// userRecord 持久化形式（model.User 的 JSON 不含哈希）
type userRecord struct {
	model.User
	PasswordHash string `json:"password_hash"`
}

// Store 基于键值后端的完整存储
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     *logging.Logger
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建键值存储
func NewStore(backend Backend, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{backend: backend, log: log.Named("kvstore"), now: time.Now}
}

// Close 关闭后端
func (s *Store) Close() error {
	return s.backend.Close()
}

// ============================================================================
// 列表读写
// ============================================================================

// loadList 读取 JSON 数组；值损坏时按空列表处理并告警
func loadList[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn("Corrupt value treated as empty", "key", key, "error", err)
		return nil, nil
	}
	return out, nil
}

func saveList[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// ============================================================================
// IdentityStore
// ============================================================================

func (s *Store) UpsertUser(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadList[userRecord](ctx, s, keyUsers)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	idx := -1
	for i := range records {
		if records[i].ID == user.ID {
			idx = i
			continue
		}
		if user.SameIdentity(&records[i].User) {
			return storage.ErrDuplicate
		}
	}

	rec := userRecord{User: *user.Clone(), PasswordHash: user.PasswordHash}
	rec.UpdatedAt = now
	if idx >= 0 {
		rec.CreatedAt = records[idx].CreatedAt
		records[idx] = rec
	} else {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		records = append(records, rec)
	}
	user.CreatedAt, user.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return saveList(ctx, s, keyUsers, records)
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[userRecord](ctx, s, keyUsers)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].MatchesIdentifier(identifier) {
			return records[i].toUser(), nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[userRecord](ctx, s, keyUsers)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return records[i].toUser(), nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := loadList[userRecord](ctx, s, keyUsers)
	if err != nil {
		return nil, err
	}
	out := make([]*model.User, len(records))
	for i := range records {
		out[i] = records[i].toUser()
	}
	return out, nil
}

func (r *userRecord) toUser() *model.User {
	u := r.User.Clone()
	u.PasswordHash = r.PasswordHash
	return u
}

// ============================================================================
// RequestStore
// ============================================================================

// CreateRequest 新申请插入列表头部
func (s *Store) CreateRequest(ctx context.Context, req *model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := loadList[*model.Request](ctx, s, keyRequests)
	if err != nil {
		return err
	}
	for _, r := range list {
		if r.ID == req.ID {
			return storage.ErrDuplicate
		}
	}
	list = append([]*model.Request{req.Clone()}, list...)
	return saveList(ctx, s, keyRequests, list)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := loadList[*model.Request](ctx, s, keyRequests)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

// ListRequests 按存储顺序返回（最新在前）
func (s *Store) ListRequests(ctx context.Context) ([]*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[*model.Request](ctx, s, keyRequests)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status model.Status, actorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := loadList[*model.Request](ctx, s, keyRequests)
	if err != nil {
		return err
	}
	for _, r := range list {
		if r.ID == id {
			r.ApplyStatus(status, actorID, at.UTC())
			return saveList(ctx, s, keyRequests, list)
		}
	}
	return storage.ErrNotFound
}

func (s *Store) ListRequestsByRequesterEmail(ctx context.Context, email string) ([]*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := loadList[*model.Request](ctx, s, keyRequests)
	if err != nil {
		return nil, err
	}
	var out []*model.Request
	for _, r := range list {
		if r.RequesterEmail != "" && strings.EqualFold(r.RequesterEmail, email) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ============================================================================
// MetaStore
// ============================================================================

func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	return s.backend.Get(ctx, metaKey(key))
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.backend.Set(ctx, metaKey(key), value)
}

func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, metaKey(key))
}

// metaKey 元数据与列表键隔离
func metaKey(key string) string {
	if key == keyUsers || key == keyRequests {
		return "meta:" + key
	}
	return key
}
