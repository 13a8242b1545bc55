package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	authn *Authenticator
	users storage.IdentityStore
	log   *logging.Logger
}

// NewHandler 创建认证处理器
func NewHandler(authn *Authenticator, users storage.IdentityStore) *Handler {
	return &Handler{authn: authn, users: users, log: authn.log}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	mux.HandleFunc("PUT /api/v1/auth/profile", h.Profile)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type loginRequest struct {
	// Identifier 邮箱或用户名；兼容只传 email 的客户端
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// ============================================================================
// Handlers
// ============================================================================

// Signup 注册
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authn.Signup(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, "signup", err)
		return
	}
	h.issueTokens(w, r, http.StatusCreated, user)
}

// Login 登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	user, err := h.authn.Login(r.Context(), identifier, req.Password)
	if err != nil {
		h.writeAuthError(w, r, "login", err)
		return
	}
	h.issueTokens(w, r, http.StatusOK, user)
}

// Refresh 刷新访问令牌
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	claims, err := ParseToken(h.authn.cfg, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if claims.Type != TokenTypeRefresh {
		writeError(w, http.StatusUnauthorized, "invalid token type")
		return
	}

	// 查询用户确保仍然存在
	user, err := h.users.GetUserByID(r.Context(), claims.Subject)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	accessToken, err := GenerateAccessToken(h.authn.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// Me 获取当前用户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := SessionFrom(r.Context()).User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Profile 补全资料（楼栋、角色、办公室号）
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user := SessionFrom(r.Context()).User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.authn.CompleteProfile(r.Context(), user.ID, req)
	if err != nil {
		h.writeAuthError(w, r, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) issueTokens(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	accessToken, err := GenerateAccessToken(h.authn.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("GenerateAccessToken failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	refreshToken, err := GenerateRefreshToken(h.authn.cfg, user.ID)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("GenerateRefreshToken failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, authResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken})
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "incorrect credentials or account not found")
	case errors.Is(err, ErrNotApproved):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "account exists")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.log.WithContext(r.Context()).WithError(err).Error("Auth operation failed", "op", op)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
