// Package lifecycle 访问申请生命周期
//
// Manager 负责创建申请、状态迁移（审批人决定、自动推进模拟、用户审批级联）
// 以及按调用方过滤可见申请。所有写操作先做授权判断，再写存储，最后发布事件。
//
// 并发语义：状态字段按最后写入为准。自动推进与审批人的显式决定可能交错，
// 不做冲突检测也不回滚；唯一的约束是任何写入都不会把申请改回 Pending。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"campus-access/internal/apiserver/authz"
	"campus-access/internal/shared/clock"
	"campus-access/internal/shared/eventbus"
	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

// Store 生命周期依赖的存储
type Store interface {
	storage.IdentityStore
	storage.RequestStore
}

// Manager 申请生命周期管理器
type Manager struct {
	store   Store
	clock   clock.Clock
	bus     eventbus.Bus
	metrics *Metrics
	log     *logging.Logger

	sim         SimulationConfig
	policy      ApprovalPolicy
	autoAdvance bool

	idMu   sync.Mutex
	lastID int64
}

// Option Manager 选项
type Option func(*Manager)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithEventBus 注入事件总线
func WithEventBus(bus eventbus.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithMetrics 注入指标
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLogger 注入日志器
func WithLogger(log *logging.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithSimulation 配置自动推进；enabled 为 true 时 CreateRequest 自动安排推进
func WithSimulation(cfg SimulationConfig, policy ApprovalPolicy, enabled bool) Option {
	return func(m *Manager) {
		m.sim = cfg
		m.policy = policy
		m.autoAdvance = enabled
	}
}

// NewManager 创建生命周期管理器
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		clock: clock.Real(),
		bus:   eventbus.NewNoOpBus(),
		log:   logging.Default("lifecycle"),
		sim:   DefaultSimulation(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policy == nil {
		m.policy = NewRandomPolicy(m.sim.ApprovalProbability, 0)
	}
	return m
}

// ============================================================================
// 创建
// ============================================================================

// CreateRequest 创建申请
//
// 没有提交权限返回 ErrAuthorizationDenied；表单不合法返回 *model.ValidationError。
// 两种失败都不写存储。新申请状态为 Pending，位于列表头部。
func (m *Manager) CreateRequest(ctx context.Context, actor *model.User, in model.RequestInput) (*model.Request, error) {
	if !authz.CanCreateRequest(actor) {
		return nil, ErrAuthorizationDenied
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = model.DefaultPriority
	}
	now := m.clock.Now().UTC()
	req := &model.Request{
		ID:             m.nextID(now),
		Form:           in.Form,
		Title:          in.Title,
		Details:        in.Details,
		StudentID:      in.StudentID,
		StudentName:    in.StudentName,
		BuildingID:     in.BuildingID,
		RoomID:         in.RoomID,
		Semester:       in.Semester,
		Justification:  in.Justification,
		Priority:       priority,
		Status:         model.StatusPending,
		RequestedBy:    actor.ID,
		RequesterName:  actor.Name,
		RequesterEmail: actor.Email,
		RequestedAt:    now,
	}
	if err := m.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if m.metrics != nil {
		m.metrics.RequestsCreated.Inc()
	}
	m.log.WithContext(ctx).Info("Request created",
		"access_request_id", req.ID, "requested_by", actor.ID, "form", string(req.Form), "building_id", req.BuildingID)
	m.publish(ctx, req, "", eventbus.SourceCreate, "")

	if m.autoAdvance {
		m.AutoAdvance(ctx, req.ID)
	}
	return req.Clone(), nil
}

// nextID 生成 req-<n>，n 严格递增
func (m *Manager) nextID(now time.Time) string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	n := now.UnixNano()
	if n <= m.lastID {
		n = m.lastID + 1
	}
	m.lastID = n
	return "req-" + strconv.FormatInt(n, 10)
}

// ============================================================================
// 审批人决定
// ============================================================================

// SetStatus 审批人显式设置状态
//
// 目标状态只能是 Under review / Approved / Rejected。
// 调用方必须管理该申请所在楼栋，否则返回 ErrAuthorizationDenied 且状态不变。
// 已处于终态的申请返回 ErrAlreadyDecided；模拟推进与级联不经过这里。
func (m *Manager) SetStatus(ctx context.Context, actor *model.User, requestID string, status model.Status) (*model.Request, error) {
	if !status.IsDecision() {
		return nil, model.NewValidationError("status", "status must be Under review, Approved or Rejected")
	}
	req, err := m.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !authz.CanActOnRequest(actor, req) {
		m.log.WithContext(ctx).Warn("Status change denied",
			"access_request_id", requestID, "actor_id", actorID(actor), "building_id", req.BuildingID)
		return nil, ErrAuthorizationDenied
	}
	if req.Status.IsTerminal() {
		return nil, fmt.Errorf("request %s is %s: %w", req.ID, req.Status, ErrAlreadyDecided)
	}
	return m.writeStatus(ctx, req, status, actor.ID, eventbus.SourceDecision)
}

// ============================================================================
// 用户审批与级联
// ============================================================================

// ApproveUser 管理员审批用户账号，并级联改写该用户的全部申请
//
// 返回更新后的用户与被级联改写的申请数。重复审批仍会执行级联。
func (m *Manager) ApproveUser(ctx context.Context, admin *model.User, userID string) (*model.User, int, error) {
	if !authz.CanApproveUsers(admin) {
		return nil, 0, ErrAuthorizationDenied
	}
	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	if !user.Approved {
		user.Approved = true
		if err := m.store.UpsertUser(ctx, user); err != nil {
			return nil, 0, fmt.Errorf("approve user: %w", err)
		}
		if m.metrics != nil {
			m.metrics.UsersApproved.Inc()
		}
		m.log.WithContext(ctx).Info("User approved", "user_id", user.ID, "approved_by", admin.ID)
	}

	n, err := m.cascadeApproveUserRequests(ctx, user)
	return user, n, err
}

// cascadeApproveUserRequests 把申请人邮箱与用户邮箱相同的所有申请改为 Approved by Chair
//
// 不区分申请当前状态，已 Approved/Rejected 的也会被改写；处理人字段保持不变。
func (m *Manager) cascadeApproveUserRequests(ctx context.Context, user *model.User) (int, error) {
	if strings.TrimSpace(user.Email) == "" {
		return 0, nil
	}
	reqs, err := m.store.ListRequestsByRequesterEmail(ctx, user.Email)
	if err != nil {
		return 0, fmt.Errorf("list requests for cascade: %w", err)
	}
	n := 0
	for _, req := range reqs {
		if _, err := m.writeStatus(ctx, req, model.StatusApprovedByChair, "", eventbus.SourceCascade); err != nil {
			return n, err
		}
		n++
	}
	if m.metrics != nil {
		m.metrics.CascadeUpdates.Add(float64(n))
	}
	if n > 0 {
		m.log.WithContext(ctx).Info("Cascade approved requests", "user_id", user.ID, "count", n)
	}
	return n, nil
}

// PendingUsers 待审批用户（未审批且非管理员）
func (m *Manager) PendingUsers(ctx context.Context, admin *model.User) ([]*model.User, error) {
	if !authz.CanApproveUsers(admin) {
		return nil, ErrAuthorizationDenied
	}
	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		if !u.Approved && u.Role != model.RoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

// ============================================================================
// 读取
// ============================================================================

// VisibleRequests 调用方可见的申请（最新在前）
func (m *Manager) VisibleRequests(ctx context.Context, actor *model.User) ([]*model.Request, error) {
	all, err := m.store.ListRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return authz.VisibleRequests(actor, all), nil
}

// GetRequest 获取单条申请；不可见时与不存在一样返回 ErrNotFound
func (m *Manager) GetRequest(ctx context.Context, actor *model.User, requestID string) (*model.Request, error) {
	req, err := m.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(actor, req) {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return req, nil
}

// KPIs 基于调用方可见申请的看板指标
func (m *Manager) KPIs(ctx context.Context, actor *model.User) (model.KPIs, error) {
	reqs, err := m.VisibleRequests(ctx, actor)
	if err != nil {
		return model.KPIs{}, err
	}
	return model.ComputeKPIs(reqs), nil
}

func (m *Manager) getRequest(ctx context.Context, requestID string) (*model.Request, error) {
	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return req, nil
}

// ============================================================================
// 状态写入
// ============================================================================

// writeStatus 唯一的状态写入路径
func (m *Manager) writeStatus(ctx context.Context, req *model.Request, to model.Status, actorID, source string) (*model.Request, error) {
	from := req.Status
	if !model.CanTransition(from, to) {
		return nil, model.NewValidationError("status", fmt.Sprintf("cannot move from %s to %s", from, to))
	}
	now := m.clock.Now().UTC()
	if err := m.store.UpdateRequestStatus(ctx, req.ID, to, actorID, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("request %s: %w", req.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	req.ApplyStatus(to, actorID, now)

	if m.metrics != nil {
		m.metrics.StatusChanges.WithLabelValues(string(to), source).Inc()
	}
	m.log.WithContext(ctx).StatusChangeLog(req.ID, string(from), string(to), source, actorID)
	m.publish(ctx, req, from, source, actorID)
	return req, nil
}

// publish 事件发布失败只记录日志，不影响已写入的状态
func (m *Manager) publish(ctx context.Context, req *model.Request, from model.Status, source, actor string) {
	event := &eventbus.StatusEvent{
		RequestID:   req.ID,
		From:        string(from),
		To:          string(req.Status),
		ActorID:     actor,
		Source:      source,
		BuildingID:  req.BuildingID,
		StudentID:   req.StudentID,
		RequestedBy: req.RequestedBy,
		Timestamp:   m.clock.Now().UTC(),
	}
	if err := m.bus.Publish(ctx, event); err != nil {
		m.log.WithContext(ctx).WithError(err).Warn("Failed to publish status event", "access_request_id", req.ID)
	}
}

func actorID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
