package server

import (
	"net/http"

	"campus-access/internal/apiserver/authz"
)

// ListUsers 全部用户（仅管理员）
//
// 路由: GET /api/v1/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	if !authz.CanApproveUsers(user) {
		writeError(w, http.StatusForbidden, "authorization denied")
		return
	}
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

// PendingUsers 待审批用户
//
// 路由: GET /api/v1/users/pending
func (h *Handler) PendingUsers(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	users, err := h.lifecycle.PendingUsers(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, r, "pending users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

// ApproveUser 审批用户，并把其申请级联改为 Approved by Chair
//
// 路由: POST /api/v1/users/{id}/approve
// 响应: {"user": {...}, "cascaded": 2}
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	admin := currentUser(w, r)
	if admin == nil {
		return
	}
	user, n, err := h.lifecycle.ApproveUser(r.Context(), admin, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, "approve user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "cascaded": n})
}
