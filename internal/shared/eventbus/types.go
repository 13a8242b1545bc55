// Package eventbus 事件总线类型定义
package eventbus

import (
	"time"
)

// 事件来源
const (
	SourceCreate   = "create"
	SourceSimulate = "simulate"
	SourceDecision = "decision"
	SourceCascade  = "cascade"
)

// StatusEvent 申请状态变更事件
type StatusEvent struct {
	ID          string    `json:"id,omitempty"`
	RequestID   string    `json:"request_id"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	ActorID     string    `json:"actor_id,omitempty"`
	Source      string    `json:"source"`
	BuildingID  int       `json:"building_id,omitempty"`
	StudentID   string    `json:"student_id,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	// KeyRequestEvents Stream 键
	KeyRequestEvents = "access_request_events"

	// MaxStreamLength Stream 最大长度
	MaxStreamLength = 1000
)
