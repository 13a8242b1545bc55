package server

import (
	"net/http"
	"strconv"

	"campus-access/internal/shared/model"
)

type statusRequest struct {
	Status string `json:"status"`
}

// ListRequests 列出调用方可见的申请
//
// 路由: GET /api/v1/requests
// 查询参数:
//   - status: 按状态过滤（大小写不敏感，Denied 视为 Rejected）
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}

	var filter model.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := model.ParseStatus(s)
		if err != nil {
			h.writeDomainError(w, r, "list requests", err)
			return
		}
		filter = st
	}

	reqs, err := h.lifecycle.VisibleRequests(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, r, "list requests", err)
		return
	}
	if filter != "" {
		out := reqs[:0]
		for _, req := range reqs {
			if req.Status == filter {
				out = append(out, req)
			}
		}
		reqs = out
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs, "count": len(reqs)})
}

// CreateRequest 提交申请
//
// 路由: POST /api/v1/requests
//
// 请求体为 model.RequestInput。新申请为 Pending；开启模拟时随后自动推进，
// 进度通过 /ws/requests 推送。
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in model.RequestInput
	if !decodeJSON(w, r, &in) {
		return
	}

	req, err := h.lifecycle.CreateRequest(r.Context(), user, in)
	if err != nil {
		h.writeDomainError(w, r, "create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetRequest 申请详情；不可见的申请返回 404
//
// 路由: GET /api/v1/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	req, err := h.lifecycle.GetRequest(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, "get request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// UpdateStatus 审批人设置状态
//
// 路由: PATCH /api/v1/requests/{id}/status
// 请求体: {"status": "Approved"}，可选值 Under review / Approved / Rejected（Denied）
// 已处于终态的申请返回 409
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var body statusRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	status, err := model.ParseStatus(body.Status)
	if err != nil {
		h.writeDomainError(w, r, "update status", err)
		return
	}

	req, err := h.lifecycle.SetStatus(r.Context(), user, r.PathValue("id"), status)
	if err != nil {
		h.writeDomainError(w, r, "update status", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RecentEvents 最近的状态事件（仅调用方可见的申请）
//
// 路由: GET /api/v1/requests/events
// 查询参数:
//   - limit: 返回数量上限（默认 50，最大 1000）
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	limit := int64(50)
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.ParseInt(l, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 1000)
	}

	events, err := recentVisible(r.Context(), h.bus, user, limit)
	if err != nil {
		h.writeDomainError(w, r, "recent events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}
