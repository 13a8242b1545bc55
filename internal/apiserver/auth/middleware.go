package auth

import (
	"net/http"
	"strings"

	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/api/v1/auth/signup",
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/api/v1/catalog/",
	"/health",
	"/metrics",
}

func isPublicRoute(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken 从 Authorization 头或 ?token= 取令牌（WebSocket 无法设置请求头）
func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		return parts[1], true
	}
	if strings.HasPrefix(r.URL.Path, "/ws/") {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

// Middleware 创建 JWT 认证中间件
//
// 令牌解析成功后从身份存储读取最新用户，注入已认证的 Session。
func Middleware(cfg Config, users storage.IdentityStore, log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			claims, err := ParseToken(cfg, token)
			if err != nil {
				log.WithContext(r.Context()).Debug("Token parse error", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Type != TokenTypeAccess {
				writeError(w, http.StatusUnauthorized, "invalid token type")
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				log.WithContext(r.Context()).WithError(err).Error("Session user lookup failed")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}

			sess := NewSession()
			sess.Begin(user)
			ctx := WithSession(r.Context(), sess)
			ctx = logging.ContextWithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
