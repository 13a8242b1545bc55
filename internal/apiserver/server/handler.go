package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"campus-access/internal/apiserver/auth"
	"campus-access/pkg/logging"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查与指标:
//   - GET /health
//   - GET /metrics
//
// 认证 (auth 包):
//   - POST /api/v1/auth/signup | login | refresh
//   - GET  /api/v1/auth/me
//   - PUT  /api/v1/auth/profile
//
// 参考数据:
//   - GET /api/v1/catalog/buildings
//   - GET /api/v1/catalog/buildings/{id}/rooms
//
// 申请:
//   - GET   /api/v1/requests              - 可见申请
//   - POST  /api/v1/requests              - 创建（按配置自动推进）
//   - GET   /api/v1/requests/events       - 最近的可见状态事件
//   - GET   /api/v1/requests/{id}
//   - PATCH /api/v1/requests/{id}/status  - 审批人设置状态
//
// 用户审批 (admin):
//   - GET  /api/v1/users
//   - GET  /api/v1/users/pending
//   - POST /api/v1/users/{id}/approve
//
// 看板:
//   - GET  /api/v1/kpis
//   - POST /api/v1/suggestions/building
//   - GET  /api/v1/reports/approved-access
//
// WebSocket:
//   - GET /ws/requests?token=...         - 状态事件推送（按可见性过滤）
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	var gatherer prometheus.Gatherer
	if h.registry != nil {
		gatherer = h.registry
	}
	mux.Handle("GET /metrics", MetricsHandler(gatherer))

	authHandler := auth.NewHandler(h.authn, h.store)
	authHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /api/v1/catalog/buildings", h.ListBuildings)
	mux.HandleFunc("GET /api/v1/catalog/buildings/{id}/rooms", h.ListRooms)

	mux.HandleFunc("GET /api/v1/requests", h.ListRequests)
	mux.HandleFunc("POST /api/v1/requests", h.CreateRequest)
	mux.HandleFunc("GET /api/v1/requests/events", h.RecentEvents)
	mux.HandleFunc("GET /api/v1/requests/{id}", h.GetRequest)
	mux.HandleFunc("PATCH /api/v1/requests/{id}/status", h.UpdateStatus)

	mux.HandleFunc("GET /api/v1/users", h.ListUsers)
	mux.HandleFunc("GET /api/v1/users/pending", h.PendingUsers)
	mux.HandleFunc("POST /api/v1/users/{id}/approve", h.ApproveUser)

	mux.HandleFunc("GET /api/v1/kpis", h.KPIs)
	mux.HandleFunc("POST /api/v1/suggestions/building", h.SuggestBuilding)
	mux.HandleFunc("GET /api/v1/reports/approved-access", h.ApprovedAccessReport)

	authMiddleware := auth.Middleware(h.authn.Config(), h.store, h.log.Named("auth"))

	// REST: 请求 ID → CORS → 认证 → 指标 → 路由
	apiHandler := requestIDMiddleware(corsMiddleware(authMiddleware(h.metrics.MetricsMiddleware(mux))))

	// WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	topMux.Handle("GET /ws/requests", authMiddleware(http.HandlerFunc(h.gateway.HandleWebSocket)))
	topMux.Handle("/", apiHandler)

	return topMux
}

// requestIDMiddleware 为每个请求分配 X-Request-ID 并写入日志上下文
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Report-Archive-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
