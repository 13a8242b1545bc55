// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 repository 层所有存储接口的正确性。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/internal/shared/storage/dbutil"
	sqlitedriver "campus-access/internal/shared/storage/driver/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
	assert.Equal(t, "datetime('now')", d.CurrentTimestamp())
	assert.True(t, d.IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email_lower (2067)")))
	assert.False(t, d.IsUniqueViolation(nil))
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND name = ?",
		d.Rebind("SELECT * FROM t WHERE id = $1 AND name = $2"))
	// 应去除 PG 类型转换
	assert.Equal(t, "UPDATE t SET status = ? WHERE id = ?",
		d.Rebind("UPDATE t SET status = $1::varchar WHERE id = $2"))
}

func TestAutoMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dialect().AutoMigrate(s.DB()))
}

// ============================================================================
// User 测试
// ============================================================================

func approverUser() *model.User {
	return &model.User{
		ID:                 "3",
		Name:               "Mr. Charlie Brown",
		Email:              "cbrown@ncat.edu",
		Username:           "cbrown",
		PasswordHash:       "hash",
		Role:               model.RoleApprover,
		Approved:           true,
		ManagesBuildingIDs: []int{1, 4},
	}
}

func TestUserUpsertAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, approverUser()))

	got, err := s.GetUserByID(ctx, "3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Mr. Charlie Brown", got.Name)
	assert.Equal(t, model.RoleApprover, got.Role)
	assert.Equal(t, []int{1, 4}, got.ManagesBuildingIDs)
	assert.True(t, got.Approved)
	assert.False(t, got.CanRequest)
	assert.Equal(t, "hash", got.PasswordHash)

	// 邮箱与用户名都可作为标识，大小写不敏感
	for _, ident := range []string{"CBrown@NCAT.edu", "CBROWN", " cbrown "} {
		u, err := s.GetUserByIdentifier(ctx, ident)
		require.NoError(t, err)
		require.NotNil(t, u, ident)
		assert.Equal(t, "3", u.ID)
	}

	missing, err := s.GetUserByIdentifier(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetUserByID(ctx, "404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserUpsertUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &model.User{ID: "prof-pend-1", Name: "Prof Demo", Email: "prof_demo@ncat.edu", Role: model.RoleProfessor, Building: "McNair"}
	require.NoError(t, s.UpsertUser(ctx, u))

	u.Approved = true
	u.Building = "Martin"
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetUserByID(ctx, "prof-pend-1")
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.Equal(t, "Martin", got.Building)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserDuplicateIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, approverUser()))

	dupEmail := &model.User{ID: "99", Email: "CBROWN@ncat.edu", Role: model.RoleRequester}
	assert.ErrorIs(t, s.UpsertUser(ctx, dupEmail), storage.ErrDuplicate)

	dupUsername := &model.User{ID: "98", Email: "other@ncat.edu", Username: "CBrown", Role: model.RoleRequester}
	assert.ErrorIs(t, s.UpsertUser(ctx, dupUsername), storage.ErrDuplicate)

	// 两个没有用户名的用户互不冲突
	a := &model.User{ID: "a", Email: "a@ncat.edu", Role: model.RoleProfessor}
	b := &model.User{ID: "b", Email: "b@ncat.edu", Role: model.RoleProfessor}
	require.NoError(t, s.UpsertUser(ctx, a))
	require.NoError(t, s.UpsertUser(ctx, b))
}

func TestUserIdentifierUniqueAcrossColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &model.User{ID: "a", Email: "x@ncat.edu", Role: model.RoleProfessor}
	require.NoError(t, s.UpsertUser(ctx, a))
	c := &model.User{ID: "c", Email: "c@ncat.edu", Username: "zed", Role: model.RoleRequester}
	require.NoError(t, s.UpsertUser(ctx, c))

	// 用户名撞上别人的邮箱，邮箱撞上别人的用户名
	b := &model.User{ID: "b", Email: "b@ncat.edu", Username: "X@ncat.edu", Role: model.RoleRequester}
	assert.ErrorIs(t, s.UpsertUser(ctx, b), storage.ErrDuplicate)
	d := &model.User{ID: "d", Email: "ZED", Role: model.RoleProfessor}
	assert.ErrorIs(t, s.UpsertUser(ctx, d), storage.ErrDuplicate)

	a.Name = "Renamed"
	require.NoError(t, s.UpsertUser(ctx, a))

	got, err := s.GetUserByIdentifier(ctx, "X@NCAT.EDU")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)
	missing, err := s.GetUserByID(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserUpsertRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	bad := &model.User{ID: "1", Email: "a@ncat.edu", Role: model.RoleRequester, ManagesBuildingIDs: []int{1}}
	var verr *model.ValidationError
	assert.True(t, errors.As(s.UpsertUser(context.Background(), bad), &verr))
}

// ============================================================================
// Request 测试
// ============================================================================

func sampleRequest(id string, at time.Time) *model.Request {
	return &model.Request{
		ID:             id,
		Form:           model.FormRoomAccess,
		StudentID:      "123456789",
		StudentName:    "John Doe",
		BuildingID:     1,
		RoomID:         101,
		Semester:       "Fall 2024",
		Justification:  "Needs access for senior design project research.",
		Priority:       model.DefaultPriority,
		Status:         model.StatusPending,
		RequestedBy:    "1",
		RequesterName:  "Dr. Alice Smith",
		RequesterEmail: "asmith@ncat.edu",
		RequestedAt:    at,
	}
}

func TestRequestCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateRequest(ctx, sampleRequest("req-1", base)))
	require.NoError(t, s.CreateRequest(ctx, sampleRequest("req-2", base.Add(time.Hour))))
	assert.ErrorIs(t, s.CreateRequest(ctx, sampleRequest("req-1", base)), storage.ErrDuplicate)

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, 101, got.RoomID)
	assert.True(t, base.Equal(got.RequestedAt))
	assert.Nil(t, got.ActionTakenBy)

	list, err := s.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "req-2", list[0].ID, "最新的申请排在最前")

	missing, err := s.GetRequest(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRequestStatusUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateRequest(ctx, sampleRequest("req-1", base)))

	// 系统写入不记录处理人
	require.NoError(t, s.UpdateRequestStatus(ctx, "req-1", model.StatusUnderReview, "", base))
	got, _ := s.GetRequest(ctx, "req-1")
	assert.Equal(t, model.StatusUnderReview, got.Status)
	assert.Nil(t, got.ActionTakenBy)

	decided := base.Add(30 * time.Minute)
	require.NoError(t, s.UpdateRequestStatus(ctx, "req-1", model.StatusApproved, "3", decided))
	got, _ = s.GetRequest(ctx, "req-1")
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.ActionTakenBy)
	assert.Equal(t, "3", *got.ActionTakenBy)
	require.NotNil(t, got.ActionTakenAt)
	assert.True(t, decided.Equal(*got.ActionTakenAt))

	assert.ErrorIs(t, s.UpdateRequestStatus(ctx, "missing", model.StatusApproved, "3", decided), storage.ErrNotFound)
}

func TestListRequestsByRequesterEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

	r1 := sampleRequest("req-1", base)
	r2 := sampleRequest("req-2", base.Add(time.Minute))
	r2.RequesterEmail = "bjohnson@ncat.edu"
	require.NoError(t, s.CreateRequest(ctx, r1))
	require.NoError(t, s.CreateRequest(ctx, r2))

	got, err := s.ListRequestsByRequesterEmail(ctx, "ASmith@ncat.edu")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "req-1", got[0].ID)
}

// ============================================================================
// Meta 测试
// ============================================================================

func TestMeta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMeta(ctx, storage.MetaKeyAppInitialized, "true"))
	require.NoError(t, s.SetMeta(ctx, storage.MetaKeyAppInitialized, "yes"))
	v, ok, err := s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", v)

	require.NoError(t, s.DeleteMeta(ctx, storage.MetaKeyAppInitialized))
	_, ok, err = s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.False(t, ok)
}
