package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage/kvstore"
	"campus-access/pkg/logging"
)

func TestMain(m *testing.M) {
	BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	return cfg
}

// newTestAuthenticator 带两个种子账号的认证器
func newTestAuthenticator(t *testing.T, cfg Config) (*Authenticator, *kvstore.Store) {
	t.Helper()
	store := kvstore.NewStore(kvstore.NewMemoryBackend(), logging.Nop())
	ctx := context.Background()

	adminHash, err := HashPassword("admin123")
	require.NoError(t, err)
	profHash, err := HashPassword("prof123")
	require.NoError(t, err)
	require.NoError(t, store.UpsertUser(ctx, &model.User{ID: "admin-1", Name: "Admin User", Email: "admin@ncat.edu",
		PasswordHash: adminHash, Role: model.RoleAdmin, Approved: true, CanRequest: true, Building: "Admin Office"}))
	require.NoError(t, store.UpsertUser(ctx, &model.User{ID: "prof-pend-1", Name: "Prof Demo", Email: "prof_demo@ncat.edu",
		PasswordHash: profHash, Role: model.RoleProfessor, CanRequest: true, Building: "McNair Hall"}))

	return NewAuthenticator(store, cfg, logging.Nop()), store
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("password")
	require.NoError(t, err)
	assert.NotEqual(t, "password", hash)
	assert.True(t, CheckPassword("password", hash))
	assert.False(t, CheckPassword("Password", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	access, err := GenerateAccessToken(cfg, "3", "cbrown@ncat.edu", "approver")
	require.NoError(t, err)

	claims, err := ParseToken(cfg, access)
	require.NoError(t, err)
	assert.Equal(t, "3", claims.Subject)
	assert.Equal(t, "approver", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)

	refresh, err := GenerateRefreshToken(cfg, "3")
	require.NoError(t, err)
	claims, err = ParseToken(cfg, refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)

	other := cfg
	other.JWTSecret = "other"
	_, err = ParseToken(other, access)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute
	token, err := GenerateAccessToken(cfg, "1", "", "")
	require.NoError(t, err)
	_, err = ParseToken(cfg, token)
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession()
	assert.Equal(t, SessionNone, s.State())
	assert.Nil(t, s.User())

	u := &model.User{ID: "1", Email: "asmith@ncat.edu", Role: model.RoleRequester}
	s.Begin(u)
	assert.True(t, s.Authenticated())
	assert.Equal(t, "1", s.User().ID)

	// 会话持有副本
	u.ID = "changed"
	assert.Equal(t, "1", s.User().ID)

	s.Clear()
	assert.Equal(t, SessionCleared, s.State())
	assert.Nil(t, s.User())

	var nilSession *Session
	assert.Nil(t, nilSession.User())
	assert.Equal(t, SessionNone, nilSession.State())
}

func TestSessionStore(t *testing.T) {
	_, store := newTestAuthenticator(t, testConfig())
	ctx := context.Background()
	ss := NewSessionStore(store, store)

	sess, err := ss.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionNone, sess.State())

	admin, err := store.GetUserByID(ctx, "admin-1")
	require.NoError(t, err)
	sess.Begin(admin)
	require.NoError(t, ss.Save(ctx, sess))

	raw, ok, err := store.GetMeta(ctx, "user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, admin.PasswordHash)

	restored, err := ss.Restore(ctx)
	require.NoError(t, err)
	require.True(t, restored.Authenticated())
	assert.Equal(t, "admin-1", restored.User().ID)

	require.NoError(t, ss.Clear(ctx, restored))
	assert.Equal(t, SessionCleared, restored.State())
	_, ok, err = store.GetMeta(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStoreCorruptValue(t *testing.T) {
	_, store := newTestAuthenticator(t, testConfig())
	ctx := context.Background()
	require.NoError(t, store.SetMeta(ctx, "user", "{broken"))

	sess, err := NewSessionStore(store, store).Restore(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}
