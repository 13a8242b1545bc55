package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-access/pkg/logging"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"login", "/api/v1/auth/login", true},
		{"signup", "/api/v1/auth/signup", true},
		{"refresh", "/api/v1/auth/refresh", true},
		{"health", "/health", true},
		{"metrics", "/metrics", true},
		{"catalog", "/api/v1/catalog/buildings", true},

		{"me", "/api/v1/auth/me", false},
		{"profile", "/api/v1/auth/profile", false},
		{"requests", "/api/v1/requests", false},
		{"ws", "/ws/requests", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isPublicRoute(tt.path))
		})
	}
}

// newTestMux 挂载认证路由与一个回显当前用户的受保护路由
func newTestMux(t *testing.T) (http.Handler, *Authenticator) {
	t.Helper()
	a, store := newTestAuthenticator(t, testConfig())
	mux := http.NewServeMux()
	NewHandler(a, store).RegisterRoutes(mux)
	mux.HandleFunc("GET /api/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SessionFrom(r.Context()).User())
	})
	mux.HandleFunc("GET /ws/requests", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SessionFrom(r.Context()).User())
	})
	return Middleware(a.Config(), store, logging.Nop())(mux), a
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, h http.Handler, identifier, password string) authResponse {
	t.Helper()
	rec := doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{"identifier": identifier, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	h, _ := newTestMux(t)

	rec := doJSON(t, h, "GET", "/api/v1/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, "GET", "/api/v1/whoami", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareInjectsSession(t *testing.T) {
	h, _ := newTestMux(t)
	resp := loginToken(t, h, "admin@ncat.edu", "admin123")
	assert.NotEmpty(t, resp.RefreshToken)

	rec := doJSON(t, h, "GET", "/api/v1/whoami", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"admin-1"`)
	assert.NotContains(t, rec.Body.String(), "password")

	// 刷新令牌不能当访问令牌用
	rec = doJSON(t, h, "GET", "/api/v1/whoami", resp.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareWebSocketQueryToken(t *testing.T) {
	h, _ := newTestMux(t)
	resp := loginToken(t, h, "admin@ncat.edu", "admin123")

	req := httptest.NewRequest("GET", "/ws/requests?token="+resp.AccessToken, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 非 /ws/ 路径不接受查询参数令牌
	req = httptest.NewRequest("GET", "/api/v1/whoami?token="+resp.AccessToken, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerSignupProfileFlow(t *testing.T) {
	h, _ := newTestMux(t)

	rec := doJSON(t, h, "POST", "/api/v1/auth/signup", "", SignupInput{Name: "Ada", Email: "ada@ncat.edu", Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var signup authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signup))
	assert.False(t, signup.User.Approved)

	rec = doJSON(t, h, "POST", "/api/v1/auth/signup", "", SignupInput{Name: "Ada", Email: "ada@ncat.edu", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/auth/signup", "", SignupInput{Name: "Ada", Email: "ada@gmail.com", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "fields")

	rec = doJSON(t, h, "PUT", "/api/v1/auth/profile", signup.AccessToken, ProfileInput{Building: "McNair Hall", Role: "professor", Office: "101"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"faculty_id":"10087101"`)

	rec = doJSON(t, h, "GET", "/api/v1/auth/me", signup.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"building":"McNair"`)
}

func TestHandlerLoginAndRefresh(t *testing.T) {
	h, _ := newTestMux(t)

	rec := doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{"email": "admin@ncat.edu", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{"email": "admin@ncat.edu"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := loginToken(t, h, "admin@ncat.edu", "admin123")
	rec = doJSON(t, h, "POST", "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	rec = doJSON(t, h, "POST", "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: resp.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionFromEmptyContext(t *testing.T) {
	assert.Nil(t, SessionFrom(context.Background()))
	assert.Nil(t, SessionFrom(context.Background()).User())
}
