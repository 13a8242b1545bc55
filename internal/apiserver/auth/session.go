package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
)

// SessionState 会话状态
type SessionState string

const (
	SessionNone          SessionState = "none"
	SessionAuthenticated SessionState = "authenticated"
	SessionCleared       SessionState = "cleared"
)

// Session 显式会话对象：none → authenticated → cleared
//
// 授权与生命周期操作都从会话取当前用户，而不是读全局变量。
type Session struct {
	mu    sync.RWMutex
	state SessionState
	user  *model.User
}

// NewSession 创建空会话
func NewSession() *Session {
	return &Session{state: SessionNone}
}

// Begin 以用户身份开始会话
func (s *Session) Begin(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user.Clone()
	s.state = SessionAuthenticated
}

// Clear 登出
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.state = SessionCleared
}

// User 当前用户；未登录返回 nil
func (s *Session) User() *model.User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// State 会话状态
func (s *Session) State() SessionState {
	if s == nil {
		return SessionNone
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated 是否已登录
func (s *Session) Authenticated() bool {
	return s.State() == SessionAuthenticated
}

// ============================================================================
// SessionStore - 本地会话持久化（CLI 使用）
// ============================================================================

// SessionStore 把会话用户写入 "user" 元数据键
type SessionStore struct {
	meta  storage.MetaStore
	users storage.IdentityStore
}

// NewSessionStore 创建会话存储
func NewSessionStore(meta storage.MetaStore, users storage.IdentityStore) *SessionStore {
	return &SessionStore{meta: meta, users: users}
}

// Save 持久化会话（不含密码哈希）；未登录时等同于 Clear
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	user := sess.User()
	if user == nil {
		return s.meta.DeleteMeta(ctx, storage.MetaKeySession)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.meta.SetMeta(ctx, storage.MetaKeySession, string(data))
}

// Restore 读取会话并从身份存储刷新用户
//
// 值缺失、损坏或用户已不存在时返回空会话。
func (s *SessionStore) Restore(ctx context.Context) (*Session, error) {
	sess := NewSession()
	raw, ok, err := s.meta.GetMeta(ctx, storage.MetaKeySession)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return sess, nil
	}
	var saved model.User
	if err := json.Unmarshal([]byte(raw), &saved); err != nil || saved.ID == "" {
		return sess, nil
	}
	user, err := s.users.GetUserByID(ctx, saved.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh session user: %w", err)
	}
	if user != nil {
		sess.Begin(user)
	}
	return sess, nil
}

// Clear 删除持久化会话
func (s *SessionStore) Clear(ctx context.Context, sess *Session) error {
	if sess != nil {
		sess.Clear()
	}
	return s.meta.DeleteMeta(ctx, storage.MetaKeySession)
}
