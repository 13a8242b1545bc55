// Package model 定义核心数据模型
//
// user.go 包含身份相关的数据模型定义：
//   - Role：角色枚举（封闭集合）
//   - User：用户（凭据、角色、审批状态、管理楼栋）
package model

import (
	"strings"
	"time"
)

// ============================================================================
// Role - 角色
// ============================================================================

// Role 用户角色
//
// 角色是封闭集合，字符串值统一为小写。
// 移动端注册用户为 professor/researcher，Web 端为 requester/approver/admin/student。
type Role string

const (
	RoleRequester  Role = "requester"
	RoleApprover   Role = "approver"
	RoleAdmin      Role = "admin"
	RoleProfessor  Role = "professor"
	RoleResearcher Role = "researcher"
	RoleStudent    Role = "student"
)

var allRoles = []Role{RoleRequester, RoleApprover, RoleAdmin, RoleProfessor, RoleResearcher, RoleStudent}

// Roles 返回全部角色
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole 解析角色（大小写不敏感）
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", NewValidationError("role", "unknown role "+s)
	}
	return r, nil
}

// IsValid 是否为已定义角色
func (r Role) IsValid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ManagesBuildings 该角色是否可以持有管理楼栋集合
func (r Role) ManagesBuildings() bool {
	return r == RoleApprover || r == RoleAdmin
}

// HasStudentID 该角色是否携带学号
func (r Role) HasStudentID() bool {
	return r == RoleStudent
}

// ============================================================================
// User - 用户
// ============================================================================

// User 用户
type User struct {
	// === 基础字段 ===

	// ID 唯一且稳定的标识
	ID string `json:"id" bson:"_id"`

	// Name 显示名称
	Name string `json:"name" bson:"name"`

	// Email 登录标识之一，唯一（大小写不敏感）
	Email string `json:"email" bson:"email"`

	// Username 登录标识之一，可选，唯一（大小写不敏感）
	Username string `json:"username,omitempty" bson:"username,omitempty"`

	// PasswordHash bcrypt 哈希，永不出现在 JSON 中
	PasswordHash string `json:"-" bson:"password_hash"`

	// === 授权字段 ===

	Role       Role `json:"role" bson:"role"`
	Approved   bool `json:"approved" bson:"approved"`
	CanRequest bool `json:"can_request" bson:"can_request"`

	// ManagesBuildingIDs 管理的楼栋（仅 approver/admin）
	ManagesBuildingIDs []int `json:"manages_building_ids,omitempty" bson:"manages_building_ids,omitempty"`

	// === 档案字段 ===

	// Building 所属楼栋名（注册后在资料页补充）
	Building string `json:"building,omitempty" bson:"building,omitempty"`

	// StudentID 学号（仅 student）
	StudentID string `json:"student_id,omitempty" bson:"student_id,omitempty"`

	// FacultyID 教职工编号，见 FacultyID()
	FacultyID string `json:"faculty_id,omitempty" bson:"faculty_id,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate 校验用户记录的角色一致性
//
// 存储层在写入前调用，保证管理楼栋只出现在 approver/admin 上、学号只出现在 student 上。
func (u *User) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(u.ID) == "" {
		verr.Add("id", "id is required")
	}
	if strings.TrimSpace(u.Email) == "" && strings.TrimSpace(u.Username) == "" {
		verr.Add("email", "email or username is required")
	}
	if !u.Role.IsValid() {
		verr.Add("role", "unknown role "+string(u.Role))
	}
	if len(u.ManagesBuildingIDs) > 0 && !u.Role.ManagesBuildings() {
		verr.Add("manages_building_ids", "only approver or admin may manage buildings")
	}
	if u.StudentID != "" && !u.Role.HasStudentID() {
		verr.Add("student_id", "only students carry a student id")
	}
	return verr.OrNil()
}

// Manages 是否管理指定楼栋
func (u *User) Manages(buildingID int) bool {
	if u == nil || !u.Role.ManagesBuildings() {
		return false
	}
	for _, id := range u.ManagesBuildingIDs {
		if id == buildingID {
			return true
		}
	}
	return false
}

// MatchesIdentifier 登录标识是否匹配（邮箱或用户名，大小写不敏感）
func (u *User) MatchesIdentifier(identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false
	}
	return strings.EqualFold(u.Email, identifier) ||
		(u.Username != "" && strings.EqualFold(u.Username, identifier))
}

// SameIdentity 两个用户是否共享某个登录标识
func (u *User) SameIdentity(other *User) bool {
	if other == nil {
		return false
	}
	if u.Email != "" && other.MatchesIdentifier(u.Email) {
		return true
	}
	return u.Username != "" && other.MatchesIdentifier(u.Username)
}

// Clone 深拷贝
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ManagesBuildingIDs != nil {
		c.ManagesBuildingIDs = append([]int(nil), u.ManagesBuildingIDs...)
	}
	return &c
}
