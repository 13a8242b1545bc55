package model

import (
	"strings"
	"time"
)

// ============================================================================
// Status - 申请状态
// ============================================================================

// Status 申请状态
//
// 状态机：Pending → Under review → Approved | Rejected，
// 另有管理员审批用户时级联写入的 "Approved by Chair"。
type Status string

const (
	StatusPending         Status = "Pending"
	StatusUnderReview     Status = "Under review"
	StatusApproved        Status = "Approved"
	StatusApprovedByChair Status = "Approved by Chair"
	StatusRejected        Status = "Rejected"
)

// statusDenied Web 端旧称，解析为 Rejected
const statusDenied = "denied"

var allStatuses = []Status{StatusPending, StatusUnderReview, StatusApproved, StatusApprovedByChair, StatusRejected}

// ParseStatus 解析状态（大小写不敏感，Denied 归一为 Rejected）
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, statusDenied) {
		return StatusRejected, nil
	}
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	if strings.EqualFold(s, "under_review") || strings.EqualFold(s, "underreview") {
		return StatusUnderReview, nil
	}
	return "", NewValidationError("status", "unknown status "+s)
}

// UnmarshalText 兼容旧数据中的 "Denied"
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// IsValid 是否为已定义状态
func (s Status) IsValid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusApprovedByChair || s == StatusRejected
}

// IsApproved 是否为通过（含 Approved by Chair）
func (s Status) IsApproved() bool {
	return s == StatusApproved || s == StatusApprovedByChair
}

// IsOpen 是否仍在处理中（Pending 或 Under review）
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusUnderReview
}

// IsDecision 审批人可以显式设置的目标状态
func (s Status) IsDecision() bool {
	return s == StatusUnderReview || s == StatusApproved || s == StatusRejected
}

// CanTransition 状态迁移是否合法
//
// 任何状态都不能回到 Pending；其余迁移按最后写入为准。
func CanTransition(from, to Status) bool {
	if !to.IsValid() {
		return false
	}
	if to == StatusPending {
		return from == StatusPending
	}
	return true
}

// ============================================================================
// Request - 访问申请
// ============================================================================

// RequestForm 申请表单类型
type RequestForm string

const (
	// FormRoomAccess Web 端：为学生申请某楼栋某房间的访问权限
	FormRoomAccess RequestForm = "room_access"
	// FormGeneral 移动端：标题 + 详情
	FormGeneral RequestForm = "general"
)

// DefaultPriority 默认优先级（仅用于展示）
const DefaultPriority = "Normal"

// Request 访问申请
type Request struct {
	// === 基础字段 ===

	ID   string      `json:"id" bson:"_id"`
	Form RequestForm `json:"form" bson:"form"`

	// === 移动端表单 ===

	Title   string `json:"title,omitempty" bson:"title,omitempty"`
	Details string `json:"details,omitempty" bson:"details,omitempty"`

	// === Web 端表单 ===

	StudentID     string `json:"student_id,omitempty" bson:"student_id,omitempty"`
	StudentName   string `json:"student_name,omitempty" bson:"student_name,omitempty"`
	BuildingID    int    `json:"building_id,omitempty" bson:"building_id,omitempty"`
	RoomID        int    `json:"room_id,omitempty" bson:"room_id,omitempty"`
	Semester      string `json:"semester,omitempty" bson:"semester,omitempty"`
	Justification string `json:"justification,omitempty" bson:"justification,omitempty"`

	Priority string `json:"priority" bson:"priority"`

	// === 状态 ===

	Status Status `json:"status" bson:"status"`

	// === 申请人 ===

	RequestedBy    string    `json:"requested_by" bson:"requested_by"`
	RequesterName  string    `json:"requester_name,omitempty" bson:"requester_name,omitempty"`
	RequesterEmail string    `json:"requester_email,omitempty" bson:"requester_email,omitempty"`
	RequestedAt    time.Time `json:"requested_at" bson:"requested_at"`

	// === 处理记录 ===

	ActionTakenBy *string    `json:"action_taken_by,omitempty" bson:"action_taken_by,omitempty"`
	ActionTakenAt *time.Time `json:"action_taken_at,omitempty" bson:"action_taken_at,omitempty"`
}

// Clone 深拷贝
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.ActionTakenBy != nil {
		v := *r.ActionTakenBy
		c.ActionTakenBy = &v
	}
	if r.ActionTakenAt != nil {
		v := *r.ActionTakenAt
		c.ActionTakenAt = &v
	}
	return &c
}

// ApplyStatus 写入状态与处理记录
// actorID 为空时表示系统（自动推进或级联）写入，不覆盖处理人
func (r *Request) ApplyStatus(status Status, actorID string, at time.Time) {
	r.Status = status
	if actorID != "" {
		id := actorID
		r.ActionTakenBy = &id
		t := at
		r.ActionTakenAt = &t
	}
}

// ============================================================================
// RequestInput - 创建申请的输入
// ============================================================================

// RequestInput 创建申请的表单输入
type RequestInput struct {
	Form RequestForm `json:"form"`

	Title   string `json:"title,omitempty"`
	Details string `json:"details,omitempty"`

	StudentID     string `json:"student_id,omitempty"`
	StudentName   string `json:"student_name,omitempty"`
	BuildingID    int    `json:"building_id,omitempty"`
	RoomID        int    `json:"room_id,omitempty"`
	Semester      string `json:"semester,omitempty"`
	Justification string `json:"justification,omitempty"`

	Priority string `json:"priority,omitempty"`
}

// MinJustificationLength Web 端说明的最短长度
const MinJustificationLength = 10

// Normalize 去除首尾空白并推断表单类型
func (in *RequestInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Details = strings.TrimSpace(in.Details)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.Semester = strings.TrimSpace(in.Semester)
	in.Justification = strings.TrimSpace(in.Justification)
	in.Priority = strings.TrimSpace(in.Priority)
	if in.Form == "" {
		if in.Title != "" || in.Details != "" {
			in.Form = FormGeneral
		} else {
			in.Form = FormRoomAccess
		}
	}
}

// Validate 校验表单字段
func (in *RequestInput) Validate() error {
	verr := &ValidationError{}
	switch in.Form {
	case FormGeneral:
		if in.Title == "" {
			verr.Add("title", "title is required")
		}
		if in.Details == "" {
			verr.Add("details", "details are required")
		}
	case FormRoomAccess:
		if in.StudentID == "" {
			verr.Add("student_id", "student id is required")
		}
		if in.StudentName == "" {
			verr.Add("student_name", "student name is required")
		}
		if in.Semester == "" {
			verr.Add("semester", "semester is required")
		}
		if len(in.Justification) < MinJustificationLength {
			verr.Add("justification", "justification must be at least 10 characters")
		}
		if _, ok := BuildingByID(in.BuildingID); !ok {
			verr.Add("building_id", "building is required")
		}
		room, ok := RoomByID(in.RoomID)
		switch {
		case !ok:
			verr.Add("room_id", "room is required")
		case room.BuildingID != in.BuildingID:
			verr.Add("room_id", "room does not belong to the selected building")
		}
	default:
		verr.Add("form", "unknown form "+string(in.Form))
	}
	return verr.OrNil()
}
