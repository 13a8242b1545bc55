package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
	"campus-access/pkg/logging"
)

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return NewStore(backend, logging.Nop()), backend
}

func TestUserRoundTripKeepsHash(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u := &model.User{ID: "3", Name: "Mr. Charlie Brown", Email: "cbrown@ncat.edu", Username: "cbrown",
		PasswordHash: "hash", Role: model.RoleApprover, Approved: true, ManagesBuildingIDs: []int{1, 4}}
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetUserByIdentifier(ctx, "CBROWN")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, []int{1, 4}, got.ManagesBuildingIDs)

	got, err = s.GetUserByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertUserDuplicateIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertUser(ctx, &model.User{ID: "1", Email: "a@ncat.edu", Role: model.RoleRequester}))

	err := s.UpsertUser(ctx, &model.User{ID: "2", Email: "A@ncat.edu", Role: model.RoleRequester})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 同 ID 更新不算冲突
	require.NoError(t, s.UpsertUser(ctx, &model.User{ID: "1", Email: "a@ncat.edu", Role: model.RoleRequester, Approved: true}))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].Approved)
}

func TestRequestsPrependAndUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateRequest(ctx, &model.Request{ID: "req-1", Status: model.StatusPending, RequesterEmail: "asmith@ncat.edu", RequestedAt: t0}))
	require.NoError(t, s.CreateRequest(ctx, &model.Request{ID: "req-2", Status: model.StatusPending, RequesterEmail: "bjohnson@ncat.edu", RequestedAt: t0.Add(time.Hour)}))
	assert.ErrorIs(t, s.CreateRequest(ctx, &model.Request{ID: "req-1"}), storage.ErrDuplicate)

	list, err := s.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "req-2", list[0].ID)

	require.NoError(t, s.UpdateRequestStatus(ctx, "req-1", model.StatusApproved, "4", t0.Add(2*time.Hour)))
	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.ActionTakenBy)
	assert.Equal(t, "4", *got.ActionTakenBy)

	assert.ErrorIs(t, s.UpdateRequestStatus(ctx, "nope", model.StatusApproved, "", t0), storage.ErrNotFound)

	mine, err := s.ListRequestsByRequesterEmail(ctx, "ASMITH@ncat.edu")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "req-1", mine[0].ID)
}

func TestCorruptValueReadsAsEmpty(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, keyRequests, "{not json"))

	list, err := s.ListRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.CreateRequest(ctx, &model.Request{ID: "req-1", Status: model.StatusPending}))
	list, err = s.ListRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMeta(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMeta(ctx, storage.MetaKeyAppInitialized, "true"))
	v, ok, err := s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	// 元数据不能覆盖列表键
	require.NoError(t, s.SetMeta(ctx, "users", "x"))
	_, ok, _ = backend.Get(ctx, "meta:users")
	assert.True(t, ok)

	require.NoError(t, s.DeleteMeta(ctx, storage.MetaKeyAppInitialized))
	_, ok, _ = s.GetMeta(ctx, storage.MetaKeyAppInitialized)
	assert.False(t, ok)
}
