package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campus-access/internal/shared/model"
)

var (
	asmith  = &model.User{ID: "1", Role: model.RoleRequester, CanRequest: true}
	eadams  = &model.User{ID: "5", Role: model.RoleRequester, CanRequest: false}
	cbrown  = &model.User{ID: "3", Role: model.RoleApprover, ManagesBuildingIDs: []int{1, 4}}
	dprince = &model.User{ID: "4", Role: model.RoleApprover, ManagesBuildingIDs: []int{2, 3}}
	admin   = &model.User{ID: "admin-1", Role: model.RoleAdmin, CanRequest: true}
	johndoe = &model.User{ID: "6", Role: model.RoleStudent, StudentID: "123456789"}
	prof    = &model.User{ID: "prof-pend-1", Role: model.RoleProfessor, CanRequest: true}
)

func requests() []*model.Request {
	return []*model.Request{
		{ID: "1", StudentID: "123456789", BuildingID: 1, RequestedBy: "1"},
		{ID: "2", StudentID: "987654321", BuildingID: 4, RequestedBy: "2"},
		{ID: "3", StudentID: "112233445", BuildingID: 2, RequestedBy: "1"},
		{ID: "4", StudentID: "123456789", BuildingID: 3, RequestedBy: "2"},
		{ID: "5", Form: model.FormGeneral, RequestedBy: "prof-pend-1"},
	}
}

func ids(rs []*model.Request) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestCanCreateRequestFollowsFlag(t *testing.T) {
	for _, role := range model.Roles() {
		assert.True(t, CanCreateRequest(&model.User{Role: role, CanRequest: true}), role)
		assert.False(t, CanCreateRequest(&model.User{Role: role}), role)
	}
	assert.False(t, CanCreateRequest(nil))
	assert.False(t, CanCreateRequest(eadams))
}

func TestCanActOnRequest(t *testing.T) {
	all := requests()
	assert.True(t, CanActOnRequest(cbrown, all[0]))
	assert.True(t, CanActOnRequest(cbrown, all[1]))
	assert.False(t, CanActOnRequest(cbrown, all[2]))
	assert.True(t, CanActOnRequest(dprince, all[2]))
	assert.False(t, CanActOnRequest(asmith, all[0]))
	// 管理员不管理任何楼栋时也不能处理
	assert.False(t, CanActOnRequest(admin, all[0]))
	assert.True(t, CanActOnRequest(&model.User{Role: model.RoleAdmin, ManagesBuildingIDs: []int{1}}, all[0]))
}

func TestVisibleRequests(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		want []string
	}{
		{"requester sees own", asmith, []string{"1", "3"}},
		{"approver sees managed buildings", cbrown, []string{"1", "2"}},
		{"student sees own student id", johndoe, []string{"1", "4"}},
		{"admin sees all", admin, []string{"1", "2", "3", "4", "5"}},
		{"professor sees own", prof, []string{"5"}},
		{"nil user sees nothing", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(VisibleRequests(tt.user, requests())))
		})
	}
}

func TestVisibleRequestsIdempotent(t *testing.T) {
	all := requests()
	assert.Equal(t, VisibleRequests(cbrown, all), VisibleRequests(cbrown, all))
}

func TestCanApproveUsers(t *testing.T) {
	assert.True(t, CanApproveUsers(admin))
	assert.False(t, CanApproveUsers(cbrown))
	assert.False(t, CanApproveUsers(nil))
}
