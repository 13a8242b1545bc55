// Package authz 基于角色的授权判断
//
// 全部为纯函数：输入用户与申请，输出允许/拒绝或过滤后的视图。
// 拒绝读取是静默过滤；拒绝写入由调用方转换为 ErrAuthorizationDenied。
package authz

import (
	"campus-access/internal/shared/model"
)

// CanCreateRequest 是否可以提交申请（只看 canRequest，与角色名无关）
func CanCreateRequest(u *model.User) bool {
	return u != nil && u.CanRequest
}

// CanActOnRequest 是否可以处理申请
//
// 审批人或管理员，且申请所在楼栋在其管理范围内。
func CanActOnRequest(u *model.User, r *model.Request) bool {
	if u == nil || r == nil {
		return false
	}
	return u.Role.ManagesBuildings() && u.Manages(r.BuildingID)
}

// CanApproveUsers 是否可以审批用户账号
func CanApproveUsers(u *model.User) bool {
	return u != nil && u.Role == model.RoleAdmin
}

// CanView 单条申请是否对用户可见
func CanView(u *model.User, r *model.Request) bool {
	if u == nil || r == nil {
		return false
	}
	switch u.Role {
	case model.RoleAdmin:
		return true
	case model.RoleApprover:
		return u.Manages(r.BuildingID)
	case model.RoleStudent:
		return u.StudentID != "" && r.StudentID == u.StudentID
	default:
		// requester / professor / researcher 只看自己提交的申请
		return r.RequestedBy == u.ID
	}
}

// VisibleRequests 过滤出用户可见的申请，保持输入顺序
func VisibleRequests(u *model.User, all []*model.Request) []*model.Request {
	out := make([]*model.Request, 0, len(all))
	for _, r := range all {
		if CanView(u, r) {
			out = append(out, r)
		}
	}
	return out
}
