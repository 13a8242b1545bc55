// Package server HTTP API 服务
//
// 文件组织：
//   - common.go: Handler 定义与通用工具函数
//   - handler.go: 路由与中间件装配
//   - requests.go: 申请接口（列表、创建、详情、状态）
//   - users.go: 用户审批接口
//   - catalog.go: 楼栋/房间参考数据
//   - dashboard.go: KPI、报表导出、楼栋推荐
//   - events.go: WebSocket 状态事件网关
//   - metrics.go: Prometheus 指标
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"campus-access/internal/apiserver/auth"
	"campus-access/internal/apiserver/lifecycle"
	"campus-access/internal/apiserver/report"
	"campus-access/internal/apiserver/suggest"
	"campus-access/internal/shared/eventbus"
	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

// Deps Handler 依赖
//
// Store、Lifecycle、Authenticator 必填；其余为空时使用默认实现或关闭对应功能。
type Deps struct {
	Store         storage.Store
	Lifecycle     *lifecycle.Manager
	Authenticator *auth.Authenticator
	Bus           eventbus.Bus
	Suggester     suggest.Suggester
	// Archive 报表归档，为 nil 时不归档
	Archive report.Archiver
	// Registry 指标注册表，为 nil 时使用默认注册表
	Registry *prometheus.Registry
	Logger   *logging.Logger
	Now      func() time.Time
}

// Handler API 处理器
type Handler struct {
	store     storage.Store
	lifecycle *lifecycle.Manager
	authn     *auth.Authenticator
	bus       eventbus.Bus
	suggester suggest.Suggester
	archive   report.Archiver

	registry *prometheus.Registry
	metrics  *Metrics
	gateway  *EventGateway
	log      *logging.Logger
	now      func() time.Time
}

// NewHandler 创建 Handler 实例
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:     d.Store,
		lifecycle: d.Lifecycle,
		authn:     d.Authenticator,
		bus:       d.Bus,
		suggester: d.Suggester,
		archive:   d.Archive,
		registry:  d.Registry,
		log:       d.Logger,
		now:       d.Now,
	}
	if h.bus == nil {
		h.bus = eventbus.NewNoOpBus()
	}
	if h.suggester == nil {
		h.suggester = suggest.NewKeywordSuggester()
	}
	if h.log == nil {
		h.log = logging.Default("api")
	}
	if h.now == nil {
		h.now = time.Now
	}
	var reg prometheus.Registerer
	if h.registry != nil {
		reg = h.registry
	}
	h.metrics = NewMetrics("campus_access", reg)
	h.gateway = NewEventGateway(h.bus, h.metrics, h.log.Named("ws"))
	return h
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser 取已认证用户；未认证时写 401 并返回 nil
func currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	user := auth.SessionFrom(r.Context()).User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
	}
	return user
}

// writeDomainError 把领域错误映射为 HTTP 状态码
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, lifecycle.ErrAuthorizationDenied):
		writeError(w, http.StatusForbidden, "authorization denied")
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, lifecycle.ErrAlreadyDecided):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, suggest.ErrExternalService):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, report.ErrNoData):
		writeError(w, http.StatusNotFound, report.NoDataNotice)
	default:
		h.log.WithContext(r.Context()).WithError(err).Error("Request failed", "op", op)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON 解析请求体；失败时写 400 并返回 false
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
