package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	s, err := NewStore(uri, "campus_access_test")
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	// 清空测试数据库并重建索引
	ctx := context.Background()
	require.NoError(t, s.db.Drop(ctx))
	require.NoError(t, s.ensureIndexes(ctx))

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u := &model.User{ID: "3", Name: "Mr. Charlie Brown", Email: "cbrown@ncat.edu", Username: "cbrown",
		PasswordHash: "hash", Role: model.RoleApprover, ManagesBuildingIDs: []int{1, 4}}
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetUserByIdentifier(ctx, "CBROWN")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, []int{1, 4}, got.ManagesBuildingIDs)

	dup := &model.User{ID: "9", Email: "CBrown@ncat.edu", Role: model.RoleRequester}
	assert.ErrorIs(t, s.UpsertUser(ctx, dup), storage.ErrDuplicate)
}

func TestUserIdentifierUniqueAcrossColumns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := &model.User{ID: "a", Email: "x@ncat.edu", Role: model.RoleProfessor}
	require.NoError(t, s.UpsertUser(ctx, a))
	c := &model.User{ID: "c", Email: "c@ncat.edu", Username: "zed", Role: model.RoleRequester}
	require.NoError(t, s.UpsertUser(ctx, c))

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
	assert.Equal(t, "Renamed", got.Name)
}

func TestRequestLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, id := range []string{"req-1", "req-2"} {
		require.NoError(t, s.CreateRequest(ctx, &model.Request{
			ID: id, Form: model.FormGeneral, Title: "t", Details: "d", Status: model.StatusPending,
			RequestedBy: "u1", RequesterEmail: "Prof_Demo@ncat.edu", RequestedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := s.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "req-2", list[0].ID)

	require.NoError(t, s.UpdateRequestStatus(ctx, "req-1", model.StatusApproved, "3", base))
	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.ActionTakenBy)

	byEmail, err := s.ListRequestsByRequesterEmail(ctx, "prof_demo@ncat.edu")
	require.NoError(t, err)
	assert.Len(t, byEmail, 2)

	assert.ErrorIs(t, s.UpdateRequestStatus(ctx, "nope", model.StatusApproved, "", base), storage.ErrNotFound)
}

func TestMeta(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetMeta(ctx, storage.MetaKeyAppInitialized, "true"))
	v, ok, err := s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.DeleteMeta(ctx, storage.MetaKeyAppInitialized))
	_, ok, err = s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.False(t, ok)
}
